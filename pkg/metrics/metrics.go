package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Normalization Metrics
	SourcesTotal          *prometheus.CounterVec
	RowsReadTotal         *prometheus.CounterVec
	RowsDroppedTotal      *prometheus.CounterVec
	RecordsNormalized     prometheus.Counter
	NormalizationDuration prometheus.Histogram

	// Aggregation Metrics
	AggregationDuration *prometheus.HistogramVec
	EmptyResultsTotal   *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
	PersistBatchSize prometheus.Histogram

	// Analysis Metrics
	AnalysisRunsTotal *prometheus.CounterVec
	LastRunTimestamp  prometheus.Gauge
	ProcessingTimeMS  *prometheus.HistogramVec
}

// NewCollector registers the application metrics on reg. A nil reg uses the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		SourcesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_sources_total",
				Help:      "Sources processed by the normalizer, by outcome",
			},
			[]string{"status"}, // "loaded", "skipped_missing", "skipped_malformed"
		),

		RowsReadTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_rows_read_total",
				Help:      "Data rows read from sources",
			},
			[]string{"dataset"},
		),

		RowsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_rows_dropped_total",
				Help:      "Rows dropped during normalization by reason",
			},
			[]string{"dataset", "reason"},
		),

		RecordsNormalized: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_records_total",
				Help:      "Normalized records produced",
			},
		),

		NormalizationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "normalize_duration_seconds",
				Help:      "Duration of a normalization pass in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),

		AggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_duration_seconds",
				Help:      "Duration of aggregation operations in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"},
		),

		EmptyResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregation_empty_results_total",
				Help:      "Aggregations that produced an empty result",
			},
			[]string{"operation"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		PersistBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "persist_batch_size",
				Help:      "Number of records per persisted batch",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
		),

		AnalysisRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_runs_total",
				Help:      "Full analysis runs by outcome",
			},
			[]string{"status"},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "analysis_last_run_timestamp_seconds",
				Help:      "Unix time of the last successful analysis run",
			},
		),

		ProcessingTimeMS: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processing_time_milliseconds",
				Help:      "Processing time in milliseconds by pipeline",
				Buckets:   []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
			},
			[]string{"pipeline"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordSource counts a processed source by status
func (c *Collector) RecordSource(status string) {
	c.SourcesTotal.WithLabelValues(status).Inc()
}

// RecordRowsRead adds to the rows-read counter of a dataset
func (c *Collector) RecordRowsRead(dataset string, n int) {
	c.RowsReadTotal.WithLabelValues(dataset).Add(float64(n))
}

// RecordRowsDropped adds to the dropped-rows counter of a dataset and reason
func (c *Collector) RecordRowsDropped(dataset, reason string, n int) {
	if n <= 0 {
		return
	}
	c.RowsDroppedTotal.WithLabelValues(dataset, reason).Add(float64(n))
}

// RecordEmptyResult increments the empty aggregation counter
func (c *Collector) RecordEmptyResult(operation string) {
	c.EmptyResultsTotal.WithLabelValues(operation).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAnalysisRun counts a finished analysis run
func (c *Collector) RecordAnalysisRun(status string) {
	c.AnalysisRunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		c.LastRunTimestamp.SetToCurrentTime()
	}
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
