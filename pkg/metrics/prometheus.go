package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	bpmBuckets       []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsStarted    *prometheus.CounterVec
	sessionsCompleted  *prometheus.CounterVec
	sessionFailures    *prometheus.CounterVec
	captureUnavailable *prometheus.CounterVec
	activeSessions     prometheus.Gauge

	// Signal
	framesSampled prometheus.Counter
	framesNoTouch prometheus.Counter
	framesDropped prometheus.Counter
	analysisTime  prometheus.Histogram
	heartRate     prometheus.Histogram
	signalQuality *prometheus.CounterVec

	// Reporting
	reportQueueSize     prometheus.Gauge
	reportQueueCapacity prometheus.Gauge
	reportsEnqueued     prometheus.Counter
	reportsDropped      prometheus.Counter
	reportsDelivered    *prometheus.CounterVec
	reportErrors        *prometheus.CounterVec
	reportLatency       *prometheus.HistogramVec
	reportWorkers       prometheus.Gauge

	// HTTP and streaming
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	websocketClients    prometheus.Gauge

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vitalcam",
		subsystem:        "ppg",
		histogramBuckets: prometheus.DefBuckets,
		bpmBuckets:       []float64{40, 50, 60, 70, 80, 90, 100, 120, 140, 160, 180},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.sessionsStarted = auto.NewCounterVec(
		m.counterOpts("sessions_started_total", "Sessions that left Idle, by capture source"),
		[]string{"source"},
	)
	m.sessionsCompleted = auto.NewCounterVec(
		m.counterOpts("sessions_completed_total", "Sessions that ended, by outcome (result, failed, stopped)"),
		[]string{"outcome"},
	)
	m.sessionFailures = auto.NewCounterVec(
		m.counterOpts("session_failures_total", "Failed sessions by reason"),
		[]string{"reason"},
	)
	m.captureUnavailable = auto.NewCounterVec(
		m.counterOpts("capture_unavailable_total", "Capture sources that could not be opened or were lost"),
		[]string{"source"},
	)
	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "1 while a session is between Countdown and Analyzing"))

	m.framesSampled = auto.NewCounter(m.counterOpts("frames_sampled_total", "Frames reduced to a colour sample while recording"))
	m.framesNoTouch = auto.NewCounter(m.counterOpts("frames_no_contact_total", "Samples rejected by the finger presence gate"))
	m.framesDropped = auto.NewCounter(m.counterOpts("frames_dropped_total", "Frames dropped before sampling (countdown, degenerate buffer, backpressure)"))
	m.analysisTime = auto.NewHistogram(m.histogramOpts(
		"analysis_latency_milliseconds", "Time spent filtering, peak picking and aggregating", m.histogramBuckets))
	m.heartRate = auto.NewHistogram(m.histogramOpts("heart_rate_bpm", "Distribution of accepted estimates", m.bpmBuckets))
	m.signalQuality = auto.NewCounterVec(
		m.counterOpts("signal_quality_total", "Quality classification at the end of each recording"),
		[]string{"quality"},
	)

	m.reportQueueSize = auto.NewGauge(m.gaugeOpts("report_queue_size", "Readings waiting for delivery"))
	m.reportQueueCapacity = auto.NewGauge(m.gaugeOpts("report_queue_capacity", "Capacity of the reading queue"))
	m.reportsEnqueued = auto.NewCounter(m.counterOpts("reports_enqueued_total", "Readings accepted by the queue"))
	m.reportsDropped = auto.NewCounter(m.counterOpts("reports_dropped_total", "Readings dropped because the queue was full or closed"))
	m.reportsDelivered = auto.NewCounterVec(
		m.counterOpts("reports_delivered_total", "Readings delivered per sink"),
		[]string{"sink"},
	)
	m.reportErrors = auto.NewCounterVec(
		m.counterOpts("report_errors_total", "Failed reading deliveries per sink"),
		[]string{"sink"},
	)
	m.reportLatency = auto.NewHistogramVec(
		m.histogramOpts("report_latency_milliseconds", "Delivery latency per sink", m.histogramBuckets),
		[]string{"sink"},
	)
	m.reportWorkers = auto.NewGauge(m.gaugeOpts("report_workers", "Running delivery workers"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.websocketClients = auto.NewGauge(m.gaugeOpts("websocket_clients", "Connected event stream clients"))

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap in use, in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordSessionStarted counts a session that entered Countdown.
func RecordSessionStarted(source string) {
	globalManager.sessionsStarted.WithLabelValues(source).Inc()
	globalManager.activeSessions.Set(1)
}

// RecordSessionCompleted counts a session end. outcome is result, failed or stopped.
func RecordSessionCompleted(outcome string) {
	globalManager.sessionsCompleted.WithLabelValues(outcome).Inc()
	globalManager.activeSessions.Set(0)
}

// RecordSessionFailure counts a failed session by reason.
func RecordSessionFailure(reason string) {
	globalManager.sessionFailures.WithLabelValues(reason).Inc()
}

// RecordCaptureUnavailable counts a capture source that could not be opened or was lost.
func RecordCaptureUnavailable(source string) {
	globalManager.captureUnavailable.WithLabelValues(source).Inc()
}

// RecordFrameSampled counts a sampled frame; contact=false also counts a gate rejection.
func RecordFrameSampled(contact bool) {
	globalManager.framesSampled.Inc()
	if !contact {
		globalManager.framesNoTouch.Inc()
	}
}

// RecordFrameDropped counts a frame that never became a sample.
func RecordFrameDropped() {
	globalManager.framesDropped.Inc()
}

// RecordAnalysisLatency records analysis time in milliseconds.
func RecordAnalysisLatency(latencyMs float64) {
	globalManager.analysisTime.Observe(latencyMs)
}

// RecordHeartRate records an accepted estimate.
func RecordHeartRate(bpm int) {
	globalManager.heartRate.Observe(float64(bpm))
}

// RecordSignalQuality counts the final quality class of a recording.
func RecordSignalQuality(quality string) {
	globalManager.signalQuality.WithLabelValues(quality).Inc()
}

// UpdateReportQueueSize sets the current reading backlog.
func UpdateReportQueueSize(size int) {
	globalManager.reportQueueSize.Set(float64(size))
}

// UpdateReportQueueCapacity sets the reading queue capacity.
func UpdateReportQueueCapacity(capacity int) {
	globalManager.reportQueueCapacity.Set(float64(capacity))
}

// RecordReportEnqueued counts an accepted reading.
func RecordReportEnqueued() {
	globalManager.reportsEnqueued.Inc()
}

// RecordReportDropped counts a reading the queue refused.
func RecordReportDropped() {
	globalManager.reportsDropped.Inc()
}

// RecordReportDelivered counts a delivery and its latency.
func RecordReportDelivered(sink string, latencyMs float64) {
	globalManager.reportsDelivered.WithLabelValues(sink).Inc()
	globalManager.reportLatency.WithLabelValues(sink).Observe(latencyMs)
}

// RecordReportError counts a failed delivery.
func RecordReportError(sink string) {
	globalManager.reportErrors.WithLabelValues(sink).Inc()
}

// UpdateReportWorkers sets the number of running delivery workers.
func UpdateReportWorkers(count int) {
	globalManager.reportWorkers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateWebsocketClients sets the number of connected event stream clients.
func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
