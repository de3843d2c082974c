// Package metrics provides Prometheus metrics for the drone soccer match engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Match and round lifecycle
	roundsStarted       prometheus.Counter
	roundsCompleted     prometheus.Counter
	roundsActive        prometheus.Gauge
	transitionRejected  *prometheus.CounterVec
	timerActions        *prometheus.CounterVec
	roundDeadlines      *prometheus.CounterVec
	scoreAdjustments    *prometheus.CounterVec
	lineupRejections    *prometheus.CounterVec
	matchesCreated      prometheus.Counter
	matchesCompleted    *prometheus.CounterVec
	currentMatchSwaps   prometheus.Counter
	storeOperationError *prometheus.CounterVec

	// Analysis dispatch
	analysisDispatches *prometheus.CounterVec
	analysisLatency    *prometheus.HistogramVec
	analysisReports    *prometheus.CounterVec

	// Device registry
	devicesRegistered prometheus.Gauge
	devicesOnline     prometheus.Gauge
	heartbeats        prometheus.Counter
	sweepFlipped      prometheus.Counter

	// Telemetry ingestion
	telemetrySamples    prometheus.Counter
	telemetryDuplicates prometheus.Counter

	// Hardware command queue and workers
	commandsDispatched *prometheus.CounterVec
	commandLatency     prometheus.Histogram
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueRejected      *prometheus.CounterVec
	workerActive       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // package-level metrics facade

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // custom registry without default Go collectors

func init() { //nolint:gochecknoinits // metrics must exist before any component records
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dronesoccer",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.roundsStarted = m.counter("rounds_started_total", "Rounds moved from pending to in_progress")
	m.roundsCompleted = m.counter("rounds_completed_total", "Rounds moved from in_progress to completed")
	m.roundsActive = m.gauge("rounds_active", "Rounds currently in progress across all matches")
	m.transitionRejected = m.counterVec("round_transition_rejected_total",
		"Round or timer transitions rejected because of the current state", "op")
	m.timerActions = m.counterVec("timer_actions_total", "Timer engine actions applied", "action")
	m.roundDeadlines = m.counterVec("round_deadlines_total",
		"Rounds whose countdown reached zero, by what the watcher did", "action")
	m.scoreAdjustments = m.counterVec("score_adjustments_total", "Manual score adjustments", "team", "direction")
	m.lineupRejections = m.counterVec("lineup_rejections_total", "Drone registrations rejected by rule", "rule")
	m.matchesCreated = m.counter("matches_created_total", "Matches scheduled")
	m.matchesCompleted = m.counterVec("matches_completed_total", "Matches completed by outcome", "outcome")
	m.currentMatchSwaps = m.counter("current_match_swaps_total", "Successful current-match pointer swaps")
	m.storeOperationError = m.counterVec("store_errors_total", "Storage failures by operation", "op")

	m.analysisDispatches = m.counterVec("analysis_dispatches_total",
		"Analysis dispatch attempts by mode and outcome", "mode", "outcome")
	m.analysisLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "analysis_call_seconds",
		Help:        "Latency of calls to the external analysis service",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: m.constLabels,
	}, []string{"endpoint"})
	m.analysisReports = m.counterVec("analysis_reports_total", "Drone reports written by status", "status")

	m.devicesRegistered = m.gauge("devices_registered", "ESP devices known to the registry")
	m.devicesOnline = m.gauge("devices_online", "ESP devices currently marked online")
	m.heartbeats = m.counter("device_heartbeats_total", "Heartbeats accepted from ESP devices")
	m.sweepFlipped = m.counter("device_sweep_flipped_total", "Devices flipped offline by liveness sweeps")

	m.telemetrySamples = m.counter("telemetry_samples_total", "Telemetry samples stored")
	m.telemetryDuplicates = m.counter("telemetry_duplicate_batches_total", "Telemetry batches dropped as duplicates")

	m.commandsDispatched = m.counterVec("hardware_commands_total",
		"Hardware commands handled by command and outcome", "command", "outcome")
	m.commandLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "hardware_command_publish_seconds",
		Help:        "Time spent publishing one hardware command",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.queueSize = m.gauge("command_queue_size", "Hardware commands waiting in the queue")
	m.queueCapacity = m.gauge("command_queue_capacity", "Capacity of the hardware command queue")
	m.queueRejected = m.counterVec("command_queue_rejected_total", "Commands the queue refused", "reason")
	m.workerActive = m.gauge("command_workers", "Hardware command workers running")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_ms",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 60000},
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordRoundStarted counts a started round and raises the active gauge.
func RecordRoundStarted() {
	globalManager.roundsStarted.Inc()
	globalManager.roundsActive.Inc()
}

// RecordRoundCompleted counts a completed round and lowers the active gauge.
func RecordRoundCompleted() {
	globalManager.roundsCompleted.Inc()
	globalManager.roundsActive.Dec()
}

// RecordTransitionRejected counts a rejected transition for op.
func RecordTransitionRejected(op string) {
	globalManager.transitionRejected.WithLabelValues(op).Inc()
}

// RecordTimerAction counts a timer action (start, pause, resume, reset).
func RecordTimerAction(action string) {
	globalManager.timerActions.WithLabelValues(action).Inc()
}

// RecordRoundDeadline counts a round that ran out of time.
func RecordRoundDeadline(action string) {
	globalManager.roundDeadlines.WithLabelValues(action).Inc()
}

// RecordScoreAdjustment counts a manual score change.
func RecordScoreAdjustment(team string, delta int) {
	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	globalManager.scoreAdjustments.WithLabelValues(team, direction).Inc()
}

// RecordLineupRejection counts a drone registration rejected by rule.
func RecordLineupRejection(rule string) {
	globalManager.lineupRejections.WithLabelValues(rule).Inc()
}

// RecordMatchCreated counts a scheduled match.
func RecordMatchCreated() { globalManager.matchesCreated.Inc() }

// RecordMatchCompleted counts a completed match by outcome (win or draw).
func RecordMatchCompleted(outcome string) {
	globalManager.matchesCompleted.WithLabelValues(outcome).Inc()
}

// RecordCurrentMatchSwap counts a current-match pointer swap.
func RecordCurrentMatchSwap() { globalManager.currentMatchSwaps.Inc() }

// RecordStoreError counts a storage failure.
func RecordStoreError(op string) {
	globalManager.storeOperationError.WithLabelValues(op).Inc()
}

// RecordAnalysisDispatch counts a dispatch attempt.
func RecordAnalysisDispatch(mode, outcome string) {
	globalManager.analysisDispatches.WithLabelValues(mode, outcome).Inc()
}

// RecordAnalysisLatency observes an analysis call duration in seconds.
func RecordAnalysisLatency(endpoint string, seconds float64) {
	globalManager.analysisLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordAnalysisReports counts n reports written with status.
func RecordAnalysisReports(status string, n int) {
	globalManager.analysisReports.WithLabelValues(status).Add(float64(n))
}

// UpdateDeviceCounts sets the registered and online device gauges.
func UpdateDeviceCounts(registered, online int) {
	globalManager.devicesRegistered.Set(float64(registered))
	globalManager.devicesOnline.Set(float64(online))
}

// RecordHeartbeat counts an accepted heartbeat.
func RecordHeartbeat() { globalManager.heartbeats.Inc() }

// RecordSweepFlipped counts devices flipped offline by one sweep.
func RecordSweepFlipped(n int) { globalManager.sweepFlipped.Add(float64(n)) }

// RecordTelemetrySamples counts stored telemetry samples.
func RecordTelemetrySamples(n int) { globalManager.telemetrySamples.Add(float64(n)) }

// RecordTelemetryDuplicate counts a telemetry batch dropped as duplicate.
func RecordTelemetryDuplicate() { globalManager.telemetryDuplicates.Inc() }

// RecordHardwareCommand counts a hardware command outcome (queued, published, failed, skipped).
func RecordHardwareCommand(command, outcome string) {
	globalManager.commandsDispatched.WithLabelValues(command, outcome).Inc()
}

// RecordCommandPublishLatency observes a publish duration in seconds.
func RecordCommandPublishLatency(seconds float64) {
	globalManager.commandLatency.Observe(seconds)
}

// UpdateQueueSize sets the current command queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the command queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejected counts a command refused by the queue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running command workers.
func UpdateWorkerCount(n int) { globalManager.workerActive.Set(float64(n)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry backing the package-level metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
