package batch

import (
	"errors"
	"fmt"
)

// Sentinel errors for batch runs.
var (
	ErrInput  = errors.New("read input failed")
	ErrOutput = errors.New("write output failed")
	ErrRemote = errors.New("remote scoring failed")
)

// APIError is a non-200 answer from the prediction API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match any API failure with errors.Is(err, ErrRemote).
func (e *APIError) Unwrap() error { return ErrRemote }
