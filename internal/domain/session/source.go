package session

import (
	"context"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
)

// Source delivers frames for one session. Frames is closed when the
// source ends on its own; Stop releases the underlying device.
type Source interface {
	Frames() <-chan model.Frame
	Stop() error
}

// OpenRequest describes the session a source is opened for.
type OpenRequest struct {
	SessionID string
	FrameRate int
}

// Opener opens capture sources of one kind.
type Opener interface {
	Open(ctx context.Context, req OpenRequest) (Source, error)
	// Method is the tag put on estimates produced from this kind of source.
	Method() string
}

// Clock supplies monotonic timestamps for frames that carry none.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
