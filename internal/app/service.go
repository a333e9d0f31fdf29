// Package service assembles the heart-rate measurement service: the
// session machine, its capture sources, the event hub and the reading
// reporter.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/internal/adapters/http/api"
	"github.com/okian/vitalcam/internal/adapters/http/swagger"
	"github.com/okian/vitalcam/internal/adapters/mq/queue"
	"github.com/okian/vitalcam/internal/adapters/mq/worker"
	"github.com/okian/vitalcam/internal/adapters/report"
	"github.com/okian/vitalcam/internal/config"
	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/ppg"
	"github.com/okian/vitalcam/internal/domain/session"
	"github.com/okian/vitalcam/pkg/logger"
)

// Capture source names.
const (
	SourceCamera    = "camera"
	SourceSynthetic = "synthetic"
)

const natsClientName = "vitalcam"

// ErrUnknownSource is returned by Start when the default source is not registered.
var ErrUnknownSource = errors.New("unknown default source")

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	// Core components
	machine   *session.Machine
	camera    *capture.StreamOpener
	synthetic *capture.SyntheticOpener
	hub       *api.Hub
	server    *api.Server
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	sinks     []worker.Sink
	nc        *nats.Conn

	// Test and embedding hooks
	extraSinks    []worker.Sink
	syntheticOpts []capture.SyntheticOption

	// State
	started   bool
	completed atomic.Int64
	failed    atomic.Int64
	lastBPM   atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults to config.New().
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSinks adds reading sinks next to the configured HTTP and NATS ones.
func WithSinks(sinks ...worker.Sink) Option {
	return func(s *Service) {
		for _, sink := range sinks {
			if sink != nil {
				s.extraSinks = append(s.extraSinks, sink)
			}
		}
	}
}

// WithSyntheticOptions tunes the synthetic source beyond the configured BPM and noise.
func WithSyntheticOptions(opts ...capture.SyntheticOption) Option {
	return func(s *Service) {
		s.syntheticOpts = append(s.syntheticOpts, opts...)
	}
}

// New constructs a new Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting vitalcam service...")

	sinks, err := s.buildSinks(ctx)
	if err != nil {
		return err
	}
	s.sinks = sinks

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.ReportQueueSize))
	s.pool = worker.NewPool(cfg.ReportWorkers, s.queue, s.sinks,
		worker.WithLogger(s.logger.Named("report")),
		worker.WithDeliveryTimeout(cfg.ReportTimeout()),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.hub = api.NewHub(s.logger.Named("events"))
	s.camera = capture.NewStreamOpener(cfg.FrameBuffer)
	syntheticOpts := append([]capture.SyntheticOption{
		capture.WithBPM(cfg.SyntheticBPM),
		capture.WithNoise(cfg.SyntheticNoise),
	}, s.syntheticOpts...)
	s.synthetic = capture.NewSyntheticOpener(syntheticOpts...)

	minDuration, maxDuration := cfg.DurationLimits()
	s.machine = session.NewMachine(
		session.WithEstimator(ppg.New(ppg.WithParams(cfg.EstimatorParams()))),
		session.WithOpener(SourceCamera, s.camera),
		session.WithOpener(SourceSynthetic, s.synthetic),
		session.WithDefaultSource(cfg.DefaultSource),
		session.WithLogger(s.logger.Named("session")),
		session.WithDurationLimits(minDuration, maxDuration),
		session.WithDefaults(cfg.Countdown(), cfg.Duration(), cfg.FrameRate),
		session.WithProgressInterval(cfg.ProgressInterval()),
		session.WithProgressHandler(s.hub.PublishProgress),
		session.WithOutcomeHandler(s.hub.PublishOutcome),
		session.WithOutcomeHandler(s.report),
	)
	if !slices.Contains(s.machine.Sources(), cfg.DefaultSource) {
		s.shutdownLocked(ctx)
		return fmt.Errorf("%w: %q", ErrUnknownSource, cfg.DefaultSource)
	}

	s.server = api.NewServer(s.machine, s.camera, s,
		api.WithLogger(s.logger.Named("api")),
		api.WithHub(s.hub),
	)

	s.started = true
	s.logger.Info(ctx, "vitalcam service started",
		logger.String("default_source", cfg.DefaultSource),
		logger.Int("report_sinks", len(s.sinks)),
		logger.Int("report_workers", s.pool.Size()),
		logger.Int("report_queue_capacity", s.queue.Capacity()),
	)
	return nil
}

func (s *Service) buildSinks(ctx context.Context) ([]worker.Sink, error) {
	cfg := s.cfg
	var sinks []worker.Sink
	if cfg.ReportURL != "" {
		opts := []report.HTTPOption{report.WithHTTPClient(&http.Client{Timeout: cfg.ReportTimeout()})}
		if cfg.ReportToken != "" {
			opts = append(opts, report.WithHeader("Authorization", "Bearer "+cfg.ReportToken))
		}
		sink, err := report.NewHTTPSink(cfg.ReportURL, opts...)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "reporting readings over http", logger.String("endpoint", sink.Endpoint()))
		sinks = append(sinks, sink)
	}
	if cfg.NATSURL != "" {
		nc, err := report.Connect(cfg.NATSURL, natsClientName)
		if err != nil {
			return nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
		}
		s.nc = nc
		sink := report.NewNATSSink(nc, cfg.NATSSubject)
		s.logger.Info(ctx, "publishing readings to nats", logger.String("subject", sink.Subject()))
		sinks = append(sinks, sink)
	}
	return append(sinks, s.extraSinks...), nil
}

// report turns a successful outcome into a queued reading.
func (s *Service) report(o model.Outcome) {
	if o.Failed || o.Estimate == nil {
		s.failed.Add(1)
		return
	}
	s.completed.Add(1)
	s.lastBPM.Store(int64(o.Estimate.BPM))

	reading, ok := model.ReadingFrom(o, s.cfg.Device)
	if !ok || len(s.sinks) == 0 {
		return
	}
	ctx := context.Background()
	if !s.queue.Enqueue(ctx, reading) {
		s.logger.Warn(ctx, "reading dropped", logger.String("session_id", reading.SessionID))
	}
}

// Handler returns the HTTP routes of the service. Start must have succeeded.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mux := http.NewServeMux()
	if s.server != nil {
		s.server.Register(mux)
	}
	swagger.Register(context.Background(), mux)
	return mux
}

// Machine returns the session machine. Nil before Start.
func (s *Service) Machine() *session.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine
}

// Stop cancels any active session, drains queued readings and closes
// connections.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping vitalcam service...")
	s.shutdownLocked(ctx)
	s.started = false
	s.logger.Info(ctx, "vitalcam service stopped")
}

func (s *Service) shutdownLocked(ctx context.Context) {
	if s.machine != nil {
		s.machine.Close()
		if err := s.machine.Wait(ctx); err != nil {
			s.logger.Warn(ctx, "session runner did not exit", logger.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "report workers did not drain", logger.Error(err))
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"sessions_completed": s.completed.Load(),
		"sessions_failed":    s.failed.Load(),
		"last_bpm":           s.lastBPM.Load(),
	}
	if !s.started {
		return stats
	}

	st := s.machine.Status()
	sources := s.machine.Sources()
	slices.Sort(sources)
	sinkNames := make([]string, 0, len(s.sinks))
	for _, sink := range s.sinks {
		sinkNames = append(sinkNames, sink.Name())
	}

	stats["phase"] = st.Phase
	stats["session_id"] = st.SessionID
	stats["sources"] = sources
	stats["default_source"] = s.cfg.DefaultSource
	stats["report_sinks"] = sinkNames
	stats["report_queue_length"] = s.queue.Len(context.Background())
	stats["report_queue_capacity"] = s.queue.Capacity()
	stats["report_workers"] = s.pool.Size()
	stats["websocket_clients"] = s.hub.Len()
	return stats
}
