// Package metrics provides Prometheus metrics for the podium record engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the podium engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Core Business Metrics - record submissions and chains
	submissions      *prometheus.CounterVec
	submitLatency    prometheus.Histogram
	supersessions    prometheus.Counter
	currentRecords   prometheus.Gauge
	traversalLength  prometheus.Histogram
	cyclesDetected   prometheus.Counter
	brokenChains     prometheus.Counter
	extraSuccessors  prometheus.Counter
	estimatesDerived prometheus.Counter

	// Store Metrics
	storeLatency   *prometheus.HistogramVec
	storeConflicts *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec

	// Queue Metrics - ingest queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - ingest workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
}

var (
	mu            sync.RWMutex
	globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager
	// Custom registry to avoid default Go metrics.
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry
)

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager and its registry. Call it once at
// startup, before any component records.
func Configure(opts ...Option) *Manager {
	reg := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(reg))...)
	mu.Lock()
	customRegistry = reg
	globalManager = m
	mu.Unlock()
	return m
}

func current() *Manager {
	mu.RLock()
	defer mu.RUnlock()
	return globalManager
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "podium",
		subsystem:        "records",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
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
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Core Business Metrics
	m.submissions = auto.NewCounterVec(
		m.counterOpts("submissions_total", "Total number of record submissions by outcome"),
		[]string{"outcome"},
	)
	m.submitLatency = auto.NewHistogram(m.histogramOpts(
		"submit_latency_milliseconds", "Latency of a record submission including the store scope", m.histogramBuckets))
	m.supersessions = auto.NewCounter(m.counterOpts(
		"supersessions_total", "Total number of current records moved to history"))
	m.currentRecords = auto.NewGauge(m.gaugeOpts(
		"current_records", "Number of record slots holding a current record"))
	m.traversalLength = auto.NewHistogram(m.histogramOpts(
		"history_traversal_length", "Number of records visited per history walk",
		prometheus.ExponentialBuckets(1, 2, 12)))
	m.cyclesDetected = auto.NewCounter(m.counterOpts(
		"history_cycles_detected_total", "History walks aborted because a record was visited twice"))
	m.brokenChains = auto.NewCounter(m.counterOpts(
		"history_broken_chains_total", "History walks aborted because an ancestor was missing"))
	m.extraSuccessors = auto.NewCounter(m.counterOpts(
		"history_extra_successors_total", "Successor lookups that found more than one successor"))
	m.estimatesDerived = auto.NewCounter(m.counterOpts(
		"estimates_derived_total", "Total number of age-category equivalents derived"))

	// Store Metrics
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"driver", "op"},
	)
	m.storeConflicts = auto.NewCounterVec(
		m.counterOpts("store_conflicts_total", "Optimistic transaction conflicts that caused a retry"),
		[]string{"driver"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store operations that returned an error"),
		[]string{"driver", "op"},
	)

	// Queue Metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the ingest queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum ingest queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts(
		"queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of submissions enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of submissions dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"queue_processing_latency_milliseconds", "Time a submission waited in the queue", m.histogramBuckets))

	// Worker Metrics
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of ingest workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers currently submitting"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
}

// Submission outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// RecordSubmission increments the submissions counter for an outcome.
func RecordSubmission(outcome string) {
	if m := current(); m.enabled {
		m.submissions.WithLabelValues(outcome).Inc()
	}
}

// RecordSubmitLatency records submission latency in milliseconds.
func RecordSubmitLatency(latencyMs float64) {
	if m := current(); m.enabled {
		m.submitLatency.Observe(latencyMs)
	}
}

// RecordSupersession increments the supersession counter.
func RecordSupersession() {
	if m := current(); m.enabled {
		m.supersessions.Inc()
	}
}

// IncCurrentRecords increments the current records gauge for a newly opened slot.
func IncCurrentRecords() {
	if m := current(); m.enabled {
		m.currentRecords.Inc()
	}
}

// UpdateCurrentRecords sets the current records gauge.
func UpdateCurrentRecords(count int) {
	if m := current(); m.enabled {
		m.currentRecords.Set(float64(count))
	}
}

// RecordTraversalLength records how many records a history walk visited.
func RecordTraversalLength(n int) {
	if m := current(); m.enabled {
		m.traversalLength.Observe(float64(n))
	}
}

// RecordCycleDetected increments the cycle counter.
func RecordCycleDetected() {
	if m := current(); m.enabled {
		m.cyclesDetected.Inc()
	}
}

// RecordBrokenChain increments the broken chain counter.
func RecordBrokenChain() {
	if m := current(); m.enabled {
		m.brokenChains.Inc()
	}
}

// RecordExtraSuccessors increments the branching successor counter.
func RecordExtraSuccessors() {
	if m := current(); m.enabled {
		m.extraSuccessors.Inc()
	}
}

// RecordEstimate adds n derived equivalents.
func RecordEstimate(n int) {
	if m := current(); m.enabled {
		m.estimatesDerived.Add(float64(n))
	}
}

// Store Metrics Functions.

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	if m := current(); m.enabled {
		m.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
	}
}

// RecordStoreConflict increments the optimistic conflict counter.
func RecordStoreConflict(driver string) {
	if m := current(); m.enabled {
		m.storeConflicts.WithLabelValues(driver).Inc()
	}
}

// RecordStoreError increments the store error counter.
func RecordStoreError(driver, op string) {
	if m := current(); m.enabled {
		m.storeErrors.WithLabelValues(driver, op).Inc()
	}
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if m := current(); m.enabled {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := current(); m.enabled {
		m.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if m := current(); m.enabled {
		m.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if m := current(); m.enabled {
		m.queueEnqueueRate.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if m := current(); m.enabled {
		m.queueDequeueRate.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if m := current(); m.enabled {
		m.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records how long a submission waited.
func RecordQueueProcessingLatency(latencyMs float64) {
	if m := current(); m.enabled {
		m.queueProcessingLatency.Observe(latencyMs)
	}
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if m := current(); m.enabled {
		m.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	if m := current(); m.enabled {
		m.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if m := current(); m.enabled {
		m.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if m := current(); m.enabled {
		m.workerErrorRate.Inc()
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if m := current(); m.enabled {
		m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return customRegistry
}
