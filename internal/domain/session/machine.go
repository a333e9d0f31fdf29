// Package session runs one heart-rate measurement at a time through
// Idle → Countdown → Recording → Analyzing → Result/Failed → Idle.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/okian/vitalcam/pkg/logger"
	"github.com/okian/vitalcam/pkg/metrics"
)

// Request holds the caller's choices for a new session. Zero values
// take the machine defaults.
type Request struct {
	Source    string
	Countdown time.Duration
	Duration  time.Duration
	FrameRate int
}

// Status is a snapshot of the machine.
type Status struct {
	SessionID string         `json:"session_id,omitempty"`
	Phase     model.Phase    `json:"phase"`
	Source    string         `json:"source,omitempty"`
	Progress  model.Progress `json:"progress"`
	Last      *model.Outcome `json:"last,omitempty"`
}

// Machine owns at most one active session.
type Machine struct {
	estimator        *ppg.Estimator
	openers          map[string]Opener
	defaultSource    string
	clock            Clock
	logger           logger.Logger
	progressHandlers []func(model.Progress)
	outcomeHandlers  []func(model.Outcome)

	minDuration      time.Duration
	maxDuration      time.Duration
	defaultCountdown time.Duration
	defaultDuration  time.Duration
	defaultFrameRate int
	progressInterval time.Duration

	mu       sync.Mutex
	run      *run
	latest   *run
	opening  bool
	closed   bool
	phase    model.Phase
	progress model.Progress
	last     *model.Outcome
}

// NewMachine creates an idle machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		estimator:        ppg.New(),
		openers:          make(map[string]Opener),
		clock:            systemClock{},
		logger:           logger.Nop(),
		minDuration:      DefaultMinDuration,
		maxDuration:      DefaultMaxDuration,
		defaultCountdown: DefaultCountdown,
		defaultDuration:  DefaultDuration,
		defaultFrameRate: DefaultFrameRate,
		progressInterval: DefaultProgressInterval,
		phase:            model.PhaseIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sources lists the registered capture source names.
func (m *Machine) Sources() []string {
	names := make([]string, 0, len(m.openers))
	for name := range m.openers {
		names = append(names, name)
	}
	return names
}

// Start opens the requested source and enters Countdown. The source is
// opened synchronously: on failure the machine stays Idle and the error
// wraps ErrCaptureUnavailable.
func (m *Machine) Start(ctx context.Context, req Request) (string, error) {
	req, opener, err := m.normalize(req)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return "", ErrClosed
	case m.run != nil || m.opening:
		m.mu.Unlock()
		return "", ErrSessionActive
	}
	m.opening = true
	m.mu.Unlock()

	id := uuid.NewString()
	src, err := opener.Open(ctx, OpenRequest{SessionID: id, FrameRate: req.FrameRate})

	m.mu.Lock()
	m.opening = false
	if err != nil {
		m.mu.Unlock()
		metrics.RecordCaptureUnavailable(req.Source)
		m.logger.Warn(ctx, "capture source unavailable", logger.String("source", req.Source), logger.Error(err))
		return "", fmt.Errorf("%w: %s: %w", ErrCaptureUnavailable, req.Source, err)
	}
	if m.closed {
		m.mu.Unlock()
		_ = src.Stop()
		return "", ErrClosed
	}
	r := &run{
		id:        id,
		req:       req,
		method:    opener.Method(),
		source:    src,
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: m.clock.Now(),
		quality:   model.QualityUnknown,
	}
	m.run = r
	m.latest = r
	m.progress = model.Progress{SessionID: id, Phase: model.PhaseCountdown, Quality: model.QualityUnknown}
	m.transitionLocked(r, model.PhaseCountdown)
	m.mu.Unlock()

	metrics.RecordSessionStarted(req.Source)
	go m.loop(r)
	return id, nil
}

// Stop cancels the active session, discarding its samples and releasing
// the source. No outcome is delivered. Calling Stop with nothing active
// is a no-op.
func (m *Machine) Stop() {
	m.mu.Lock()
	r := m.run
	if r == nil {
		m.mu.Unlock()
		return
	}
	m.run = nil
	m.progress = model.Progress{SessionID: r.id, Phase: model.PhaseIdle, Quality: model.QualityUnknown}
	m.transitionLocked(r, model.PhaseIdle)
	m.mu.Unlock()

	r.cancelOnce.Do(func() { close(r.cancel) })
	r.release(m.logger)
	metrics.RecordSessionCompleted("stopped")
}

// Close stops any active session and refuses further starts.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Stop()
}

// Wait blocks until the most recent session's runner has exited or ctx is
// done. It also covers a session that Stop or Close has just cancelled.
func (m *Machine) Wait(ctx context.Context) error {
	m.mu.Lock()
	r := m.latest
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the machine.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Phase: m.phase, Progress: m.progress}
	if m.run != nil {
		st.SessionID = m.run.id
		st.Source = m.run.req.Source
	}
	if m.last != nil {
		last := *m.last
		st.Last = &last
	}
	return st
}

func (m *Machine) normalize(req Request) (Request, Opener, error) {
	if req.Source == "" {
		req.Source = m.defaultSource
	}
	opener, ok := m.openers[req.Source]
	if !ok {
		return req, nil, fmt.Errorf("%w: unknown source %q", ErrInvalidOptions, req.Source)
	}
	switch req.Countdown {
	case NoCountdown:
		req.Countdown = 0
	case 0:
		req.Countdown = m.defaultCountdown
	}
	if req.Countdown < 0 || req.Countdown > MaxCountdown {
		return req, nil, fmt.Errorf("%w: countdown %s", ErrInvalidOptions, req.Countdown)
	}
	if req.Duration == 0 {
		req.Duration = m.defaultDuration
	}
	if req.Duration < m.minDuration || req.Duration > m.maxDuration {
		return req, nil, fmt.Errorf("%w: duration %s outside [%s, %s]", ErrInvalidOptions, req.Duration, m.minDuration, m.maxDuration)
	}
	if req.FrameRate == 0 {
		req.FrameRate = m.defaultFrameRate
	}
	if req.FrameRate < 1 || req.FrameRate > MaxFrameRate {
		return req, nil, fmt.Errorf("%w: frame rate %d", ErrInvalidOptions, req.FrameRate)
	}
	return req, opener, nil
}

// transitionLocked records a phase change. Caller holds m.mu.
func (m *Machine) transitionLocked(r *run, next model.Phase) {
	prev := m.phase
	if prev == next {
		return
	}
	m.phase = next
	m.progress.Phase = next
	m.logger.Debug(context.Background(), "session phase transition",
		logger.String("session_id", r.id),
		logger.String("from", string(prev)),
		logger.String("to", string(next)),
	)
}

func (m *Machine) emitProgress(p model.Progress) {
	for _, h := range m.progressHandlers {
		h(p)
	}
}

func (m *Machine) emitOutcome(o model.Outcome) {
	for _, h := range m.outcomeHandlers {
		h(o)
	}
}
