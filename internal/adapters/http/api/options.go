package api

import (
	"time"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/pkg/logger"
)

// Defaults for frame ingestion.
const (
	DefaultPushTimeout   = time.Second
	DefaultMaxFrameBytes = 8 + 1280*720*4
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHub shares an event hub created ahead of the server.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithPushTimeout bounds how long an upload waits for stream buffer space.
func WithPushTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

// WithMaxFrameBytes caps the size of one uploaded frame, header included.
func WithMaxFrameBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 && n <= 8+capture.MaxDimension*capture.MaxDimension*4 {
			s.maxFrameBytes = n
		}
	}
}
