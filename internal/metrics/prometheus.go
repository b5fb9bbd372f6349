package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the workflow relay
type PrometheusMetrics struct {
	// Log ingestion metrics
	LogRecordsTotal        *prometheus.CounterVec
	ReconciliationsTotal   *prometheus.CounterVec
	IngestionBatchSize     prometheus.Histogram
	LogsClearedTotal       prometheus.Counter
	ArticleWritesTotal     prometheus.Counter
	ListDegradationsTotal  prometheus.Counter
	StoredEntriesLastCount prometheus.Gauge

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all Prometheus metrics and registers them
// with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		LogRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_log_records_total",
				Help: "Total number of log records ingested",
			},
			[]string{"type", "outcome"},
		),

		ReconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_reconciliations_total",
				Help: "Total number of waiting-entry reconciliation attempts",
			},
			[]string{"result"},
		),

		IngestionBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_ingestion_batch_size",
				Help:    "Number of records submitted per ingestion call",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),

		LogsClearedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_logs_cleared_total",
				Help: "Total number of clear-all operations",
			},
		),

		ArticleWritesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_article_writes_total",
				Help: "Total number of latest-article writes",
			},
		),

		ListDegradationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_list_degradations_total",
				Help: "Listings answered with an empty page because the store failed",
			},
		),

		StoredEntriesLastCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_stored_entries",
				Help: "Total entries reported by the most recent listing",
			},
		),

		// Storage metrics
		StorageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_storage_operations_total",
				Help: "Total number of log store operations",
			},
			[]string{"operation", "backend", "status"},
		),

		StorageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_storage_operation_duration_seconds",
				Help:    "Duration of log store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),

		// API metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Application health metrics
		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordLogRecord records the outcome of one ingested record
func (m *PrometheusMetrics) RecordLogRecord(logType, outcome string) {
	m.LogRecordsTotal.WithLabelValues(logType, outcome).Inc()
}

// RecordReconciliation records a reconciliation attempt
func (m *PrometheusMetrics) RecordReconciliation(result string) {
	m.ReconciliationsTotal.WithLabelValues(result).Inc()
}

// RecordIngestionBatch records the size of an ingestion call
func (m *PrometheusMetrics) RecordIngestionBatch(size int) {
	m.IngestionBatchSize.Observe(float64(size))
}

// RecordLogsCleared records a clear-all operation
func (m *PrometheusMetrics) RecordLogsCleared() {
	m.LogsClearedTotal.Inc()
}

// RecordArticleWrite records a latest-article write
func (m *PrometheusMetrics) RecordArticleWrite() {
	m.ArticleWritesTotal.Inc()
}

// RecordListDegraded records a listing that fell back to an empty page
func (m *PrometheusMetrics) RecordListDegraded() {
	m.ListDegradationsTotal.Inc()
}

// UpdateStoredEntries updates the stored entries gauge
func (m *PrometheusMetrics) UpdateStoredEntries(total int64) {
	m.StoredEntriesLastCount.Set(float64(total))
}

// RecordStorageOperation records a log store operation
func (m *PrometheusMetrics) RecordStorageOperation(operation, backend, status string, duration time.Duration) {
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
