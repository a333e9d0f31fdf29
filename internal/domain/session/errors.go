package session

import "errors"

// Sentinel kinds for session errors.
var (
	ErrSessionActive      = errors.New("session already in progress")
	ErrInvalidOptions     = errors.New("invalid session options")
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrClosed             = errors.New("session machine closed")
)

// ReasonCaptureLost is the failure reason when a source ends mid-session.
const ReasonCaptureLost = "capture lost"
