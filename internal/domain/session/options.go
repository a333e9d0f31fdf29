package session

import (
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/okian/vitalcam/pkg/logger"
)

// Default session timing.
const (
	DefaultCountdown        = 3 * time.Second
	DefaultDuration         = 30 * time.Second
	DefaultMinDuration      = 10 * time.Second
	DefaultMaxDuration      = 30 * time.Second
	DefaultFrameRate        = 30
	DefaultProgressInterval = 250 * time.Millisecond
	MaxFrameRate            = 60
	MaxCountdown            = 10 * time.Second
)

// NoCountdown asks for recording to begin as soon as the source is open.
// A zero Request.Countdown takes the machine default instead.
const NoCountdown time.Duration = -1

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithEstimator sets the PPG estimator used for analysis.
func WithEstimator(e *ppg.Estimator) Option {
	return func(m *Machine) {
		if e != nil {
			m.estimator = e
		}
	}
}

// WithOpener registers a capture source under name.
func WithOpener(name string, o Opener) Option {
	return func(m *Machine) {
		if name != "" && o != nil {
			m.openers[name] = o
		}
	}
}

// WithDefaultSource sets the source used when Options.Source is empty.
func WithDefaultSource(name string) Option {
	return func(m *Machine) {
		m.defaultSource = name
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(m *Machine) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithProgressHandler registers a callback for progress updates.
func WithProgressHandler(h func(model.Progress)) Option {
	return func(m *Machine) {
		if h != nil {
			m.progressHandlers = append(m.progressHandlers, h)
		}
	}
}

// WithOutcomeHandler registers a callback for terminal outcomes.
func WithOutcomeHandler(h func(model.Outcome)) Option {
	return func(m *Machine) {
		if h != nil {
			m.outcomeHandlers = append(m.outcomeHandlers, h)
		}
	}
}

// WithDurationLimits bounds the recording duration a caller may request.
func WithDurationLimits(minDuration, maxDuration time.Duration) Option {
	return func(m *Machine) {
		if minDuration > 0 && maxDuration >= minDuration {
			m.minDuration = minDuration
			m.maxDuration = maxDuration
		}
	}
}

// WithDefaults sets the countdown, duration and frame rate used when a
// Start request leaves them zero.
func WithDefaults(countdown, duration time.Duration, frameRate int) Option {
	return func(m *Machine) {
		if countdown >= 0 {
			m.defaultCountdown = countdown
		}
		if duration > 0 {
			m.defaultDuration = duration
		}
		if frameRate > 0 {
			m.defaultFrameRate = frameRate
		}
	}
}

// WithProgressInterval sets how often progress is emitted. Values above
// one second are clamped.
func WithProgressInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.progressInterval = min(d, time.Second)
		}
	}
}
