package table

import "errors"

// Sentinel kinds for table errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrParse             = errors.New("parse table failed")
	ErrRowWidth          = errors.New("row width does not match header")
	ErrLengthMismatch    = errors.New("column length does not match row count")
)
