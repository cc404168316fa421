package service

import "errors"

// Service errors. Table, scoring and inference failures surface wrapped in
// their own package sentinels.
var (
	// ErrPipelineUnavailable means the artifact could not be loaded. It is
	// permanent for the life of the process.
	ErrPipelineUnavailable = errors.New("pipeline unavailable")
	ErrResultNotFound      = errors.New("result not found or expired")
)
