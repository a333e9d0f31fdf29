package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrRejected = errors.New("report rejected")
	ErrConfig   = errors.New("invalid report config")
)
