// Package metrics provides Prometheus metrics for the fplcoach recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Recommendation engine
	recommendationRequests *prometheus.CounterVec
	recommendationLatency  *prometheus.HistogramVec
	degradedResponses      *prometheus.CounterVec
	suggestionsReturned    *prometheus.HistogramVec

	// Prediction lookups
	predictionLookups *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	predictionRetries prometheus.Counter
	retryBudgetSpent  prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter

	// Snapshot cache and catalog
	snapshotCount     prometheus.Gauge
	snapshotPublishes prometheus.Counter
	snapshotEvictions prometheus.Counter
	catalogPlayers    prometheus.Gauge
	catalogReloads    *prometheus.CounterVec

	// Lookup queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Lookup workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // exposed on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Configure rebuilds the package-level collectors on a fresh registry. Call
// it once at startup, before anything records or serves metrics.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithRegistry(registry))
	globalManager = NewManager(all...)
	customRegistry = registry
}

// NewManager creates a new metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      defaultNamespace,
		latencyBuckets: DefaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.recommendationRequests = m.counterVec("recommendation_requests_total",
		"Recommendation operations by operation, tier and outcome", "operation", "tier", "outcome")
	m.recommendationLatency = m.histogramVec("recommendation_latency_milliseconds",
		"End to end latency of recommendation operations in milliseconds", m.latencyBuckets, "operation")
	m.degradedResponses = m.counterVec("degraded_responses_total",
		"Responses produced with at least one unresolvable player", "operation")
	m.suggestionsReturned = m.histogramVec("suggestions_returned",
		"Number of items returned per recommendation response", []float64{0, 1, 2, 3, 5, 10}, "operation")

	m.predictionLookups = m.counterVec("prediction_lookups_total",
		"Prediction lookups against the external source by outcome", "outcome")
	m.predictionLatency = m.histogram("prediction_latency_milliseconds",
		"Latency of a single prediction lookup in milliseconds", m.latencyBuckets)
	m.predictionRetries = m.counter("prediction_retries_total",
		"Prediction lookups retried after a timeout")
	m.retryBudgetSpent = m.counter("prediction_retry_budget_exhausted_total",
		"Requests whose prediction retry budget ran out")
	m.cacheHits = m.counter("snapshot_cache_hits_total", "Predictions served from the snapshot cache")
	m.cacheMisses = m.counter("snapshot_cache_misses_total", "Predictions missing from the snapshot cache")

	m.snapshotCount = m.gauge("snapshots", "Prediction snapshots currently published")
	m.snapshotPublishes = m.counter("snapshot_publishes_total", "Snapshot versions published")
	m.snapshotEvictions = m.counter("snapshot_evictions_total", "Snapshots dropped by the refresh job")
	m.catalogPlayers = m.gauge("catalog_players", "Players in the active catalog")
	m.catalogReloads = m.counterVec("catalog_reloads_total", "Catalog reload attempts by outcome", "outcome")

	m.queueSize = m.gauge("lookup_queue_size", "Current number of queued prediction lookups")
	m.queueCapacity = m.gauge("lookup_queue_capacity", "Capacity of the prediction lookup queue")
	m.queueUtilization = m.gauge("lookup_queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("lookup_queue_enqueued_total", "Prediction lookups accepted by the queue")
	m.queueEnqueueErrors = m.counterVec("lookup_queue_enqueue_errors_total",
		"Prediction lookups rejected by the queue", "reason")

	m.workerCount = m.gauge("lookup_workers", "Number of prediction lookup workers")
	m.workerBusy = m.gauge("lookup_workers_busy", "Lookup workers currently calling the prediction source")
	m.workerProcessingLatency = m.histogram("lookup_worker_processing_latency_milliseconds",
		"Time a worker spends on one lookup job in milliseconds", m.latencyBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and error type", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Errors by type and severity", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds",
		"Average GC pause in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordRecommendation counts one recommendation operation.
func RecordRecommendation(operation, tier, outcome string, latencyMs float64) {
	globalManager.recommendationRequests.WithLabelValues(operation, tier, outcome).Inc()
	globalManager.recommendationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordDegraded counts a response that excluded unresolvable players.
func RecordDegraded(operation string) {
	globalManager.degradedResponses.WithLabelValues(operation).Inc()
}

// RecordSuggestionsReturned observes how many items a response carried.
func RecordSuggestionsReturned(operation string, n int) {
	globalManager.suggestionsReturned.WithLabelValues(operation).Observe(float64(n))
}

// RecordPredictionLookup counts one lookup against the prediction source.
func RecordPredictionLookup(outcome string, latencyMs float64) {
	globalManager.predictionLookups.WithLabelValues(outcome).Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordPredictionRetry counts a retried lookup.
func RecordPredictionRetry() {
	globalManager.predictionRetries.Inc()
}

// RecordRetryBudgetExhausted counts a request that ran out of retries.
func RecordRetryBudgetExhausted() {
	globalManager.retryBudgetSpent.Inc()
}

// RecordCacheHits adds n snapshot cache hits.
func RecordCacheHits(n int) {
	globalManager.cacheHits.Add(float64(n))
}

// RecordCacheMisses adds n snapshot cache misses.
func RecordCacheMisses(n int) {
	globalManager.cacheMisses.Add(float64(n))
}

// UpdateSnapshotCount sets the number of published snapshots.
func UpdateSnapshotCount(n int) {
	globalManager.snapshotCount.Set(float64(n))
}

// RecordSnapshotPublish counts a published snapshot version.
func RecordSnapshotPublish() {
	globalManager.snapshotPublishes.Inc()
}

// RecordSnapshotEvictions adds n evicted snapshots.
func RecordSnapshotEvictions(n int) {
	globalManager.snapshotEvictions.Add(float64(n))
}

// UpdateCatalogPlayers sets the size of the active catalog.
func UpdateCatalogPlayers(n int) {
	globalManager.catalogPlayers.Set(float64(n))
}

// RecordCatalogReload counts a catalog reload attempt.
func RecordCatalogReload(outcome string) {
	globalManager.catalogReloads.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the lookup queue size and derived utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the lookup queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted lookup job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError counts a rejected lookup job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of lookup workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerProcessingLatency observes the time spent on one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records errors by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count.
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
