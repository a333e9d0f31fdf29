package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/session"
)

// Stream is a source fed by a remote client pushing frames.
type Stream struct {
	id     string
	frames chan model.Frame
	done   chan struct{} // closed by Stop
	ending chan struct{} // closed by End

	stopOnce sync.Once
	endOnce  sync.Once
	mu       sync.Mutex // serializes pushes against End
	ended    bool
	onStop   func(*Stream)

	pushed atomic.Uint64
}

func newStream(id string, buffer int, onStop func(*Stream)) *Stream {
	return &Stream{
		id:     id,
		frames: make(chan model.Frame, buffer),
		done:   make(chan struct{}),
		ending: make(chan struct{}),
		onStop: onStop,
	}
}

// ID is the session the stream was opened for.
func (s *Stream) ID() string { return s.id }

// Frames implements session.Source.
func (s *Stream) Frames() <-chan model.Frame { return s.frames }

// Pushed returns the number of accepted frames.
func (s *Stream) Pushed() uint64 { return s.pushed.Load() }

// Push hands a frame to the session, waiting for buffer space.
func (s *Stream) Push(ctx context.Context, f model.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.frames <- f:
		s.pushed.Add(1)
		return nil
	case <-s.done:
		return ErrClosed
	case <-s.ending:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements session.Source. It is safe to call more than once.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop(s)
		}
	})
	return nil
}

// End marks the feed as finished, for example when the client goes away.
// The session sees its frame channel close.
func (s *Stream) End() {
	s.endOnce.Do(func() {
		close(s.ending)
		s.mu.Lock()
		s.ended = true
		close(s.frames)
		s.mu.Unlock()
	})
}

// StreamOpener opens client-fed streams and tracks the current one so
// uploads can be routed to it.
type StreamOpener struct {
	mu      sync.Mutex
	current *Stream
	buffer  int
}

// NewStreamOpener creates an opener whose streams buffer the given
// number of frames. Zero means one second at the session frame rate.
func NewStreamOpener(buffer int) *StreamOpener {
	return &StreamOpener{buffer: buffer}
}

// Open implements session.Opener.
func (o *StreamOpener) Open(_ context.Context, req session.OpenRequest) (session.Source, error) {
	buffer := o.buffer
	if buffer <= 0 {
		buffer = max(req.FrameRate, 1)
	}
	s := newStream(req.SessionID, buffer, o.release)

	o.mu.Lock()
	prev := o.current
	o.current = s
	o.mu.Unlock()
	if prev != nil {
		prev.End()
	}
	return s, nil
}

// Method implements session.Opener.
func (o *StreamOpener) Method() string { return model.MethodWebcam }

// Current returns the open stream, if any.
func (o *StreamOpener) Current() (*Stream, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.current != nil
}

// Push routes a frame to the open stream.
func (o *StreamOpener) Push(ctx context.Context, f model.Frame) error {
	s, ok := o.Current()
	if !ok {
		return ErrNoStream
	}
	return s.Push(ctx, f)
}

// EndCurrent ends the open stream's feed.
func (o *StreamOpener) EndCurrent() {
	if s, ok := o.Current(); ok {
		s.End()
	}
}

func (o *StreamOpener) release(s *Stream) {
	o.mu.Lock()
	if o.current == s {
		o.current = nil
	}
	o.mu.Unlock()
}
