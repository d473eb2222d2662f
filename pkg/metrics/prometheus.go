// Package metrics provides Prometheus metrics for the catch game engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Control tick
	ticks        prometheus.Counter
	tickOverruns prometheus.Counter
	tickDuration prometheus.Histogram

	// Sensor ingestion
	sensorFrames   *prometheus.CounterVec
	sensorDropped  *prometheus.CounterVec
	sensorRestarts *prometheus.CounterVec

	// Participants
	confirmedParticipants prometheus.Gauge
	activeSlots           prometheus.Gauge
	slotRejections        prometheus.Counter
	slotTimeouts          prometheus.Counter

	// Falling objects
	fallingObjects prometheus.Gauge
	spawns         prometheus.Counter
	catches        *prometheus.CounterVec
	misses         prometheus.Counter

	// Session
	sessionScore     prometheus.Gauge
	phase            prometheus.Gauge
	phaseTransitions *prometheus.CounterVec

	// Ranking persistence
	rankingWrites       prometheus.Counter
	rankingErrors       *prometheus.CounterVec
	rankingWriteLatency prometheus.Histogram
	recorderQueueSize   prometheus.Gauge
	recorderDropped     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mangacatch",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.ticks = m.counter("ticks_total", "Control ticks executed")
	m.tickOverruns = m.counter("tick_overruns_total", "Control ticks that took longer than the tick period")
	m.tickDuration = m.histogram("tick_duration_milliseconds", "Wall time spent inside one control tick", m.histogramBuckets)

	m.sensorFrames = m.counterVec("sensor_frames_total", "Frames published by sensor sources", "source")
	m.sensorDropped = m.counterVec("sensor_dropped_total", "Sensor inputs dropped before publication", "source", "reason")
	m.sensorRestarts = m.counterVec("sensor_restarts_total", "Sensor source restarts after failure", "source")

	m.confirmedParticipants = m.gauge("confirmed_participants", "Debounced participant count driving the speed multiplier")
	m.activeSlots = m.gauge("active_slots", "Currently active participant slots")
	m.slotRejections = m.counter("slot_rejections_total", "Detections ignored because every slot was occupied")
	m.slotTimeouts = m.counter("slot_timeouts_total", "Slots released after the leave timeout")

	m.fallingObjects = m.gauge("falling_objects", "Falling objects currently on screen")
	m.spawns = m.counter("spawns_total", "Falling objects spawned")
	m.catches = m.counterVec("catches_total", "Falling objects caught by item type", "item")
	m.misses = m.counter("misses_total", "Falling objects that left the screen uncaught")

	m.sessionScore = m.gauge("session_score", "Running score of the active session")
	m.phase = m.gauge("phase", "Current session phase ordinal")
	m.phaseTransitions = m.counterVec("phase_transitions_total", "Session phase transitions", "from", "to")

	m.rankingWrites = m.counter("ranking_writes_total", "Committed ranking insertions")
	m.rankingErrors = m.counterVec("ranking_errors_total", "Ranking persistence failures", "op")
	m.rankingWriteLatency = m.histogram("ranking_write_latency_milliseconds", "Ranking insertion latency",
		[]float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000})
	m.recorderQueueSize = m.gauge("recorder_queue_size", "Ranking results waiting to be written")
	m.recorderDropped = m.counterVec("recorder_dropped_total", "Ranking results given up on", "reason")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_requests_total",
		Help: "HTTP requests by endpoint and method", ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.customLabels,
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and type", "endpoint", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordTick records one control tick and whether it overran its period.
func RecordTick(durationMs float64, overrun bool) {
	globalManager.ticks.Inc()
	globalManager.tickDuration.Observe(durationMs)
	if overrun {
		globalManager.tickOverruns.Inc()
	}
}

// RecordSensorFrame increments the published frame counter for source.
func RecordSensorFrame(source string) {
	globalManager.sensorFrames.WithLabelValues(source).Inc()
}

// RecordSensorDropped counts an input dropped by source for reason.
func RecordSensorDropped(source, reason string) {
	globalManager.sensorDropped.WithLabelValues(source, reason).Inc()
}

// RecordSensorRestart counts a source restart.
func RecordSensorRestart(source string) {
	globalManager.sensorRestarts.WithLabelValues(source).Inc()
}

// UpdateConfirmedParticipants sets the debounced participant count.
func UpdateConfirmedParticipants(count int) {
	globalManager.confirmedParticipants.Set(float64(count))
}

// UpdateActiveSlots sets the active slot gauge.
func UpdateActiveSlots(count int) {
	globalManager.activeSlots.Set(float64(count))
}

// RecordSlotRejection counts a detection ignored for lack of a free slot.
func RecordSlotRejection() {
	globalManager.slotRejections.Inc()
}

// RecordSlotTimeout counts a slot released by the leave timeout.
func RecordSlotTimeout() {
	globalManager.slotTimeouts.Inc()
}

// UpdateFallingObjects sets the on-screen object gauge.
func UpdateFallingObjects(count int) {
	globalManager.fallingObjects.Set(float64(count))
}

// RecordSpawn counts a spawned object.
func RecordSpawn() {
	globalManager.spawns.Inc()
}

// RecordCatch counts a caught object of item type.
func RecordCatch(item string) {
	globalManager.catches.WithLabelValues(item).Inc()
}

// RecordMiss counts an object that left the screen uncaught.
func RecordMiss() {
	globalManager.misses.Inc()
}

// UpdateSessionScore sets the running score gauge.
func UpdateSessionScore(score int) {
	globalManager.sessionScore.Set(float64(score))
}

// RecordPhaseTransition counts a transition and updates the phase gauge.
func RecordPhaseTransition(from, to string, ordinal int) {
	globalManager.phaseTransitions.WithLabelValues(from, to).Inc()
	globalManager.phase.Set(float64(ordinal))
}

// RecordRankingWrite records a committed ranking insertion.
func RecordRankingWrite(latencyMs float64) {
	globalManager.rankingWrites.Inc()
	globalManager.rankingWriteLatency.Observe(latencyMs)
}

// RecordRankingError counts a ranking persistence failure for op ("read" or "write").
func RecordRankingError(op string) {
	globalManager.rankingErrors.WithLabelValues(op).Inc()
}

// UpdateRecorderQueueSize sets the number of pending ranking results.
func UpdateRecorderQueueSize(n int) {
	globalManager.recorderQueueSize.Set(float64(n))
}

// RecordRecorderDropped counts a ranking result that was never written.
func RecordRecorderDropped(reason string) {
	globalManager.recorderDropped.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
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
