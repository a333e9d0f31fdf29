package capture

import "errors"

// Sentinel kinds for capture errors.
var (
	ErrClosed   = errors.New("capture stream closed")
	ErrNoStream = errors.New("no capture stream open")
	ErrBadFrame = errors.New("bad frame")
)
