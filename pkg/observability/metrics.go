package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RunsTotal tracks the total number of period runs by final state
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_runs_total",
			Help: "Total number of period runs",
		},
		[]string{"trigger", "state"}, // state: logged, skipped, failed, rejected
	)

	// RunDuration measures period run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dwhetl_run_duration_seconds",
			Help:    "Period run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
		[]string{"state"},
	)

	// RunActive is 1 while a run holds the run lock
	RunActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwhetl_run_active",
			Help: "Whether a run is currently in progress (1=running, 0=idle)",
		},
	)

	// PendingPeriods tracks the number of unprocessed months found by the last pass
	PendingPeriods = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwhetl_pending_periods",
			Help: "Number of months not yet covered by the ETL history log",
		},
	)

	// LastLoggedPeriodEnd tracks the end date of the last logged period
	LastLoggedPeriodEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwhetl_last_logged_period_end",
			Help: "End date of the last logged period (unix timestamp)",
		},
	)

	// RowsExtracted counts source rows extracted per entity
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_rows_extracted_total",
			Help: "Total number of source rows extracted",
		},
		[]string{"entity"},
	)

	// ExtractionFailures counts per-entity extraction failures
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_extraction_failures_total",
			Help: "Total number of per-entity extraction failures",
		},
		[]string{"entity"},
	)

	// DimensionChanges counts dimension rows written by reconciliation
	DimensionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_dimension_changes_total",
			Help: "Total number of dimension rows inserted or updated",
		},
		[]string{"dimension", "operation"}, // operation: insert, update
	)

	// FactRowsDropped counts fact candidates dropped during reconciliation
	FactRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_fact_rows_dropped_total",
			Help: "Total number of fact candidates dropped during reconciliation",
		},
		[]string{"fact", "reason"}, // reason: duplicate, existing, invalid, unknown_date
	)

	// RowsLoaded counts rows appended by the loader
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_rows_loaded_total",
			Help: "Total number of rows appended to warehouse tables",
		},
		[]string{"table"},
	)

	// LoadFailures counts per-table load failures
	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_load_failures_total",
			Help: "Total number of per-table load failures",
		},
		[]string{"table"},
	)

	// FactRowsDeleted counts fact rows removed when reprocessing a period
	FactRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_fact_rows_deleted_total",
			Help: "Total number of fact rows deleted for reprocessing",
		},
		[]string{"table"},
	)

	// PostgresQueries counts total number of PostgreSQL queries executed
	PostgresQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_postgres_queries_total",
			Help: "Total number of PostgreSQL queries executed",
		},
		[]string{"database", "query_type", "status"}, // query_type: select, exec, copy, tx
	)

	// PostgresQueryDuration measures PostgreSQL query execution time
	PostgresQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dwhetl_postgres_query_duration_seconds",
			Help:    "PostgreSQL query execution time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"database", "query_type"},
	)

	// TasksEnqueued counts total number of tasks enqueued
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_tasks_enqueued_total",
			Help: "Total number of tasks enqueued",
		},
		[]string{"task_type", "trigger"}, // trigger: schedule, api, cli
	)

	// HistoryCacheHits tracks history page cache hits
	HistoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dwhetl_history_cache_hits_total",
			Help: "Total number of history page cache hits",
		},
	)

	// HistoryCacheMisses tracks history page cache misses
	HistoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dwhetl_history_cache_misses_total",
			Help: "Total number of history page cache misses",
		},
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwhetl_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordRunStart marks a run as in progress
func RecordRunStart() {
	RunActive.Set(1)
}

// RecordRunComplete records the final state of a run
func RecordRunComplete(trigger, state string, duration float64) {
	RunActive.Set(0)
	RunsTotal.WithLabelValues(trigger, state).Inc()
	RunDuration.WithLabelValues(state).Observe(duration)
}

// RecordRunRejected records a run refused because another run holds the lock
func RecordRunRejected(trigger string) {
	RunsTotal.WithLabelValues(trigger, "rejected").Inc()
}

// RecordPending records the number of unprocessed months
func RecordPending(count int) {
	PendingPeriods.Set(float64(count))
}

// RecordPeriodLogged records the end date of a period written to the history log
func RecordPeriodLogged(end time.Time) {
	LastLoggedPeriodEnd.Set(float64(end.Unix()))
}

// RecordExtraction records the outcome of one entity extraction
func RecordExtraction(entity string, rows int, failed bool) {
	if failed {
		ExtractionFailures.WithLabelValues(entity).Inc()
		return
	}

	RowsExtracted.WithLabelValues(entity).Add(float64(rows))
}

// RecordDimensionChanges records reconciled dimension writes
func RecordDimensionChanges(dimension string, inserts, updates int) {
	DimensionChanges.WithLabelValues(dimension, "insert").Add(float64(inserts))
	DimensionChanges.WithLabelValues(dimension, "update").Add(float64(updates))
}

// RecordFactDropped records fact candidates dropped for a reason
func RecordFactDropped(fact, reason string, count int) {
	if count == 0 {
		return
	}

	FactRowsDropped.WithLabelValues(fact, reason).Add(float64(count))
}

// RecordLoad records the outcome of one table load
func RecordLoad(table string, rows int64, err error) {
	if err != nil {
		LoadFailures.WithLabelValues(table).Inc()
		return
	}

	RowsLoaded.WithLabelValues(table).Add(float64(rows))
}

// RecordFactsDeleted records fact rows removed for reprocessing
func RecordFactsDeleted(table string, rows int64) {
	FactRowsDeleted.WithLabelValues(table).Add(float64(rows))
}

// RecordQuery records PostgreSQL query metrics
func RecordQuery(database, queryType, status string, duration float64) {
	PostgresQueries.WithLabelValues(database, queryType, status).Inc()
	PostgresQueryDuration.WithLabelValues(database, queryType).Observe(duration)
}

// RecordTaskEnqueued records task enqueue
func RecordTaskEnqueued(taskType, trigger string) {
	TasksEnqueued.WithLabelValues(taskType, trigger).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHistoryCacheHit records a history page cache hit
func RecordHistoryCacheHit() {
	HistoryCacheHits.Inc()
}

// RecordHistoryCacheMiss records a history page cache miss
func RecordHistoryCacheMiss() {
	HistoryCacheMisses.Inc()
}
