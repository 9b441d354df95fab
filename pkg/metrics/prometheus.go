// Package metrics provides Prometheus metrics for the vigil proctoring
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager manages all Prometheus metrics for the vigil service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ingestion metrics
	eventsRecorded  *prometheus.CounterVec // by kind
	eventsRejected  *prometheus.CounterVec // by reason
	eventsDebounced prometheus.Counter

	// Scoring metrics
	reportsComputed      prometheus.Counter
	reportComputeLatency prometheus.Histogram

	// Session metrics
	openSessions  prometheus.Gauge
	totalSessions prometheus.Gauge

	// Store metrics
	storeAppendLatency prometheus.Histogram
	storeReadLatency   prometheus.Histogram

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec // by reason

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	tallyApplied            *prometheus.CounterVec // by kind

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vigil",
		subsystem:        "proctoring",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		}
	}
	gaugeOpts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		}
	}
	histogramOpts := func(name, help string) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
			Buckets:   m.histogramBuckets,
		}
	}

	m.eventsRecorded = prometheus.NewCounterVec(factory("events_recorded_total", "Events durably appended to session logs"), []string{"kind"})
	m.eventsRejected = prometheus.NewCounterVec(factory("events_rejected_total", "Events rejected at ingestion"), []string{"reason"})
	m.eventsDebounced = prometheus.NewCounter(factory("events_debounced_total", "Events suppressed by the ingestion debouncer"))

	m.reportsComputed = prometheus.NewCounter(factory("reports_computed_total", "Score reports computed"))
	m.reportComputeLatency = prometheus.NewHistogram(histogramOpts("report_compute_latency_ms", "Score report computation latency in milliseconds"))

	m.openSessions = prometheus.NewGauge(gaugeOpts("open_sessions", "Sessions currently accepting events"))
	m.totalSessions = prometheus.NewGauge(gaugeOpts("total_sessions", "Sessions tracked by the store"))

	m.storeAppendLatency = prometheus.NewHistogram(histogramOpts("store_append_latency_ms", "Event append latency in milliseconds"))
	m.storeReadLatency = prometheus.NewHistogram(histogramOpts("store_read_latency_ms", "Event log snapshot latency in milliseconds"))

	m.queueSize = prometheus.NewGauge(gaugeOpts("queue_size", "Events waiting in the tally queue"))
	m.queueCapacity = prometheus.NewGauge(gaugeOpts("queue_capacity", "Capacity of the tally queue"))
	m.queueEnqueues = prometheus.NewCounter(factory("queue_enqueues_total", "Events enqueued for tally processing"))
	m.queueDequeues = prometheus.NewCounter(factory("queue_dequeues_total", "Events dequeued by tally workers"))
	m.queueEnqueueErrors = prometheus.NewCounterVec(factory("queue_enqueue_errors_total", "Enqueue failures"), []string{"reason"})

	m.workerCount = prometheus.NewGauge(gaugeOpts("worker_count", "Tally workers in the pool"))
	m.workerProcessingLatency = prometheus.NewHistogram(histogramOpts("worker_processing_latency_ms", "Per-event tally processing latency in milliseconds"))
	m.workerErrors = prometheus.NewCounter(factory("worker_errors_total", "Tally worker failures"))
	m.tallyApplied = prometheus.NewCounterVec(factory("tally_applied_total", "Events folded into live tallies"), []string{"kind"})

	m.httpRequests = prometheus.NewCounterVec(factory("http_requests_total", "HTTP requests"), []string{"endpoint", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(histogramOpts("http_request_duration_ms", "HTTP request latency in milliseconds"), []string{"endpoint", "method", "status"})

	m.errorsByComponent = prometheus.NewCounterVec(factory("errors_total", "Errors by component and reason"), []string{"component", "reason"})

	m.systemMemoryUsage = prometheus.NewGauge(gaugeOpts("system_memory_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = prometheus.NewGauge(gaugeOpts("system_goroutines", "Live goroutines"))
	m.systemGCPauseTime = prometheus.NewHistogram(histogramOpts("system_gc_pause_ms", "Average GC pause in milliseconds"))

	if !m.enabled {
		return
	}

	m.registry.MustRegister(
		m.eventsRecorded,
		m.eventsRejected,
		m.eventsDebounced,
		m.reportsComputed,
		m.reportComputeLatency,
		m.openSessions,
		m.totalSessions,
		m.storeAppendLatency,
		m.storeReadLatency,
		m.queueSize,
		m.queueCapacity,
		m.queueEnqueues,
		m.queueDequeues,
		m.queueEnqueueErrors,
		m.workerCount,
		m.workerProcessingLatency,
		m.workerErrors,
		m.tallyApplied,
		m.httpRequests,
		m.httpRequestDuration,
		m.errorsByComponent,
		m.systemMemoryUsage,
		m.systemGoroutineCount,
		m.systemGCPauseTime,
	)
}

// GetRegistry returns the registry backing the global manager, for exposition
// handlers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Ingestion helpers.

// RecordEventRecorded counts one durably appended event.
func RecordEventRecorded(kind string) {
	globalManager.eventsRecorded.WithLabelValues(kind).Inc()
}

// RecordEventRejected counts one ingestion rejection.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordEventDebounced counts one suppressed detection.
func RecordEventDebounced() {
	globalManager.eventsDebounced.Inc()
}

// Scoring helpers.

// RecordReportComputed counts one computed score report.
func RecordReportComputed() {
	globalManager.reportsComputed.Inc()
}

// RecordReportLatency observes one report computation latency.
func RecordReportLatency(ms float64) {
	globalManager.reportComputeLatency.Observe(ms)
}

// Session helpers.

// UpdateOpenSessions sets the open-session gauge.
func UpdateOpenSessions(n int) {
	globalManager.openSessions.Set(float64(n))
}

// UpdateTotalSessions sets the total-session gauge.
func UpdateTotalSessions(n int) {
	globalManager.totalSessions.Set(float64(n))
}

// Store helpers.

// RecordStoreAppendLatency observes one append latency.
func RecordStoreAppendLatency(ms float64) {
	globalManager.storeAppendLatency.Observe(ms)
}

// RecordStoreReadLatency observes one snapshot latency.
func RecordStoreReadLatency(ms float64) {
	globalManager.storeReadLatency.Observe(ms)
}

// Queue helpers.

// UpdateQueueSize sets the queue-size gauge.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the queue-capacity gauge.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordQueueEnqueue counts one successful enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue counts one dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError counts one failed enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Worker helpers.

// UpdateWorkerCount sets the worker-count gauge.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// RecordWorkerProcessingLatency observes one per-event processing latency.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}

// RecordWorkerError counts one worker failure.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordTallyApplied counts one event folded into a live tally.
func RecordTallyApplied(kind string) {
	globalManager.tallyApplied.WithLabelValues(kind).Inc()
}

// HTTP helpers.

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request latency.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// Error helpers.

// RecordErrorByComponent counts one error by component and reason.
func RecordErrorByComponent(component, reason string) {
	globalManager.errorsByComponent.WithLabelValues(component, reason).Inc()
}

// System helpers.

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}
