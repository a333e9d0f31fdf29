package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/okian/vitalcam/pkg/logger"
	"github.com/okian/vitalcam/pkg/metrics"
)

// run is one session. Everything below the mutex line is owned by the
// runner goroutine.
type run struct {
	id        string
	req       Request
	method    string
	source    Source
	cancel    chan struct{}
	done      chan struct{}
	startedAt time.Time

	cancelOnce  sync.Once
	releaseOnce sync.Once

	recording bool
	origin    time.Time
	samples   []model.Sample
	contact   int
	lastAt    time.Duration
	quality   model.Quality
}

// release stops the source exactly once.
func (r *run) release(log logger.Logger) {
	r.releaseOnce.Do(func() {
		if err := r.source.Stop(); err != nil {
			log.Warn(context.Background(), "capture source stop failed",
				logger.String("session_id", r.id), logger.Error(err))
		}
	})
}

func (r *run) progress(phase model.Phase) model.Progress {
	p := model.Progress{
		SessionID: r.id,
		Phase:     phase,
		Quality:   r.quality,
		Samples:   len(r.samples),
	}
	if n := len(r.samples); n > 0 {
		p.Contact = r.samples[n-1].Contact
	}
	if r.recording {
		expected := r.req.Duration.Seconds() * float64(r.req.FrameRate)
		if expected > 0 {
			p.Fraction = min(float64(r.contact)/expected, 1)
		}
	}
	return p
}

// loop owns the phase timer, the progress ticker and the frame
// subscription of one session.
func (m *Machine) loop(r *run) {
	defer close(r.done)
	defer r.release(m.logger)

	timer := time.NewTimer(r.req.Countdown)
	defer timer.Stop()
	ticker := time.NewTicker(m.progressInterval)
	defer ticker.Stop()
	frames := r.source.Frames()

	m.publish(r, model.PhaseCountdown)
	for {
		select {
		case <-r.cancel:
			m.emitProgress(r.progress(model.PhaseIdle))
			return
		case <-timer.C:
			if !r.recording {
				m.beginRecording(r)
				timer.Reset(r.req.Duration)
				continue
			}
			m.finish(r)
			return
		case f, ok := <-frames:
			if !ok {
				m.captureLost(r)
				return
			}
			if !r.recording {
				metrics.RecordFrameDropped()
				continue
			}
			m.ingest(r, f)
		case <-ticker.C:
			if r.recording {
				m.publish(r, model.PhaseRecording)
			} else {
				m.publish(r, model.PhaseCountdown)
			}
		}
	}
}

// publish stores and emits progress if r is still the active run.
func (m *Machine) publish(r *run, phase model.Phase) {
	p := r.progress(phase)
	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	m.progress = p
	m.mu.Unlock()
	m.emitProgress(p)
}

// beginRecording leaves Countdown. Samples start empty.
func (m *Machine) beginRecording(r *run) {
	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	r.recording = true
	r.samples = r.samples[:0]
	r.contact = 0
	m.transitionLocked(r, model.PhaseRecording)
	m.mu.Unlock()

	m.logger.Info(context.Background(), "recording started",
		logger.String("session_id", r.id),
		logger.Duration("duration", r.req.Duration),
		logger.Int("frame_rate", r.req.FrameRate),
	)
	m.publish(r, model.PhaseRecording)
}

// ingest samples one frame while Recording.
func (m *Machine) ingest(r *run, f model.Frame) {
	at := f.At
	if at.IsZero() {
		at = m.clock.Now()
	}
	if len(r.samples) == 0 {
		r.origin = at
	}
	offset := at.Sub(r.origin)
	if len(r.samples) > 0 && offset <= r.lastAt {
		// out of order or duplicate timestamp
		metrics.RecordFrameDropped()
		return
	}

	s, ok := m.estimator.Sample(f.Image, offset)
	if !ok {
		metrics.RecordFrameDropped()
		return
	}
	metrics.RecordFrameSampled(s.Contact)

	r.samples = append(r.samples, s)
	r.lastAt = offset
	if s.Contact {
		r.contact++
	}
	r.quality = m.estimator.Quality(r.samples)
}

// finish releases the source, analyzes the recording and delivers the
// outcome unless the session was stopped meanwhile.
func (m *Machine) finish(r *run) {
	r.release(m.logger)

	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(r, model.PhaseAnalyzing)
	m.mu.Unlock()
	m.emitProgress(r.progress(model.PhaseAnalyzing))

	started := time.Now()
	est, err := m.estimator.Analyze(r.samples, r.method)
	metrics.RecordAnalysisLatency(float64(time.Since(started).Microseconds()) / 1000)
	metrics.RecordSignalQuality(string(r.quality))

	o := r.outcome(m.clock.Now())
	if err != nil {
		o.Failed = true
		o.Reason = ppg.Reason(err)
		o.Err = err
	} else {
		o.Estimate = &est
	}
	m.complete(r, o)
}

// captureLost ends the session when its source closes the frame channel.
func (m *Machine) captureLost(r *run) {
	r.release(m.logger)
	metrics.RecordCaptureUnavailable(r.req.Source)

	o := r.outcome(m.clock.Now())
	o.Failed = true
	o.Reason = ReasonCaptureLost
	o.Err = fmt.Errorf("%w: %s", ErrCaptureUnavailable, ReasonCaptureLost)
	m.complete(r, o)
}

// complete moves through Result or Failed back to Idle and delivers o.
func (m *Machine) complete(r *run, o model.Outcome) {
	terminal := model.PhaseResult
	if o.Failed {
		terminal = model.PhaseFailed
	}

	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(r, terminal)
	m.run = nil
	m.last = &o
	m.progress = r.progress(terminal)
	m.transitionLocked(r, model.PhaseIdle)
	m.mu.Unlock()

	ctx := context.Background()
	if o.Failed {
		metrics.RecordSessionCompleted("failed")
		metrics.RecordSessionFailure(o.Reason)
		lvl := m.logger.Info
		if errors.Is(o.Err, ErrCaptureUnavailable) {
			lvl = m.logger.Warn
		}
		lvl(ctx, "session failed",
			logger.String("session_id", r.id),
			logger.String("reason", o.Reason),
			logger.Int("samples", o.Samples),
			logger.Int("contact_samples", o.ContactSamples),
		)
	} else {
		metrics.RecordSessionCompleted("result")
		metrics.RecordHeartRate(o.Estimate.BPM)
		m.logger.Info(ctx, "session result",
			logger.String("session_id", r.id),
			logger.Int("bpm", o.Estimate.BPM),
			logger.String("quality", string(o.Estimate.Quality)),
			logger.String("method", o.Estimate.Method),
		)
	}
	m.emitOutcome(o)
}

func (r *run) outcome(now time.Time) model.Outcome {
	return model.Outcome{
		SessionID:      r.id,
		Source:         r.req.Source,
		Samples:        len(r.samples),
		ContactSamples: r.contact,
		StartedAt:      r.startedAt,
		CompletedAt:    now,
	}
}
