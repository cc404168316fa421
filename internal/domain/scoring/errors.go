package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrArtifactLoad    = errors.New("load pipeline artifact failed")
	ErrInvalidArtifact = errors.New("invalid pipeline artifact")
	ErrScore           = errors.New("score table failed")
	ErrMissingColumn   = errors.New("missing required column")
	ErrInvalidValue    = errors.New("invalid value")
)
