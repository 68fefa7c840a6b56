package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lightview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lightview_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Job queue metrics
var (
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_jobs_enqueued_total",
			Help: "Total number of jobs enqueued, by kind",
		},
		[]string{"kind"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_jobs_completed_total",
			Help: "Total number of jobs completed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lightview_job_duration_seconds",
			Help:    "Job execution duration in seconds, by kind",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	JobsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_jobs_pending",
			Help: "Number of pending jobs in the queue",
		},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_jobs_running",
			Help: "Number of jobs currently claimed by workers",
		},
	)

	ViewContextUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_view_context_updates_total",
			Help: "Total number of view-context priority updates",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_scanner_runs_total",
			Help: "Total number of scanner passes, by trigger",
		},
		[]string{"trigger"},
	)

	ScannerFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_scanner_files_seen_total",
			Help: "Total number of files observed during scanner passes",
		},
	)

	ScannerFilesNew = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_scanner_files_new_total",
			Help: "Total number of new or changed files discovered",
		},
	)

	ScannerFilesRetired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_scanner_files_retired_total",
			Help: "Total number of files retired because they vanished from disk",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_scanner_last_run_duration_seconds",
			Help: "Duration of the last scanner pass in seconds",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightview_watcher_events_total",
			Help: "Total number of filesystem events received, by type",
		},
		[]string{"type"},
	)

	WatcherRescansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_watcher_rescans_total",
			Help: "Total number of scanner passes triggered by the watcher",
		},
	)

	WatcherErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_watcher_errors_total",
			Help: "Total number of watcher subsystem errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_watched_directories",
			Help: "Number of directories currently under filesystem watch",
		},
	)
)

// Worker pool metrics
var (
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lightview_workers_active",
			Help: "Number of workers currently executing a job",
		},
	)

	WorkerIdleWakeups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lightview_worker_idle_wakeups_total",
			Help: "Total number of worker wakeups that found no eligible job",
		},
	)
)
