package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "book_library_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_indexer_runs_total",
			Help: "Total number of scan and reconcile runs",
		},
		[]string{"status"}, // "ok", "error"
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_indexer_last_run_timestamp",
			Help: "Timestamp of the last indexer run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)

	ScannerEntitiesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_scanner_entities_scanned_total",
			Help: "Total number of categories and books discovered by scans",
		},
		[]string{"kind"}, // "category", "image_book", "pdf_book"
	)

	ScannerDirectoriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "book_library_scanner_directories_skipped_total",
			Help: "Directories skipped because they could not be read",
		},
	)

	ScannerAnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_scanner_analysis_duration_seconds",
			Help:    "Time spent sampling page dimensions per book",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"type"},
	)

	ReconcileChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_reconcile_changes_total",
			Help: "Changes applied by reconciliation",
		},
		[]string{"entity", "action"}, // entity: "category", "book", "relation"
	)

	ReconcileFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_reconcile_failures_total",
			Help: "Per-entity reconciliation operations that failed",
		},
		[]string{"entity", "action"},
	)
)

// Tree cache metrics
var (
	TreeCacheRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_tree_cache_rebuilds_total",
			Help: "Total number of tree cache rebuilds",
		},
		[]string{"status"},
	)

	TreeCacheRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "book_library_tree_cache_rebuild_duration_seconds",
			Help:    "Tree cache rebuild duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	TreeCacheEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "book_library_tree_cache_entities",
			Help: "Entities held by the current tree cache snapshot",
		},
		[]string{"kind"}, // "category", "book"
	)
)

// Render metrics
var (
	RenderGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_render_generations_total",
			Help: "Total number of cover, thumbnail and SVG generations",
		},
		[]string{"kind", "status"},
	)

	RenderGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_render_generation_duration_seconds",
			Help:    "Render generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	RenderCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_render_cache_hits_total",
			Help: "Render requests served from the on-disk cache",
		},
		[]string{"kind"},
	)

	RenderCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_render_cache_misses_total",
			Help: "Render requests that required a generation",
		},
		[]string{"kind"},
	)

	RenderCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_render_cache_size_bytes",
			Help: "Total size of the render cache in bytes",
		},
	)
)

// Worker pool metrics
var (
	WorkerPoolWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_worker_pool_workers",
			Help: "Number of live worker goroutines (0 when the pool is reclaimed)",
		},
	)

	WorkerPoolActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_worker_pool_active_tasks",
			Help: "Tasks submitted and not yet finished",
		},
	)

	WorkerPoolTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_worker_pool_tasks_total",
			Help: "Tasks executed by the worker pool",
		},
		[]string{"status"}, // "ok", "error", "canceled"
	)

	WorkerPoolDedupShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "book_library_worker_pool_dedup_shared_total",
			Help: "Requests that joined an in-flight task instead of starting one",
		},
	)

	WorkerPoolReclaims = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "book_library_worker_pool_reclaims_total",
			Help: "Times the idle pool was reclaimed",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_transcoder_jobs_total",
			Help: "Total number of PDF page conversions",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "book_library_transcoder_job_duration_seconds",
			Help:    "PDF page conversion duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_library_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_library_filesystem_retry_events_total",
			Help: "Stale NFS handle retry events (stale, scheduled, recovered, exhausted)",
		},
		[]string{"operation", "volume", "event"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_memory_paused",
			Help: "Whether render work is paused due to memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "book_library_memory_gc_pauses_total",
			Help: "Times processing was paused for memory pressure",
		},
	)
)

// Library metrics
var (
	LibraryBooksTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "book_library_books_total",
			Help: "Total number of books by type",
		},
		[]string{"type"},
	)

	LibraryCategoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_categories_total",
			Help: "Total number of categories",
		},
	)

	LibraryFavoritesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_favorites_total",
			Help: "Total number of favorite books",
		},
	)

	LibraryCustomCategoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_custom_categories_total",
			Help: "Total number of custom categories",
		},
	)

	LibraryOptimizationNeeded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "book_library_optimization_needed_total",
			Help: "Books whose pages exceed the dimension thresholds",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "book_library_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
