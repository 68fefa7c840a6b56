package handlers

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lightview/internal/catalog"
	"lightview/internal/jobs"
	"lightview/internal/scanner"
	"lightview/internal/status"
	"lightview/internal/watcher"
)

// Handlers binds the engine's components to the HTTP API.
type Handlers struct {
	store   *catalog.Store
	queue   *jobs.Queue
	scanner *scanner.Scanner
	watcher *watcher.Watcher // may be nil when watching is disabled
	agg     *status.Aggregator

	startedAt time.Time
	ready     atomic.Bool
}

// New creates the handler set. watcher may be nil.
func New(store *catalog.Store, queue *jobs.Queue, sc *scanner.Scanner, w *watcher.Watcher, agg *status.Aggregator) *Handlers {
	return &Handlers{
		store:     store,
		queue:     queue,
		scanner:   sc,
		watcher:   w,
		agg:       agg,
		startedAt: time.Now(),
	}
}

// SetReady marks the engine ready for traffic. Called by main once tracked
// directories are loaded and the initial scan is underway.
func (h *Handlers) SetReady() {
	h.ready.Store(true)
}

// Routes registers every endpoint on the router.
func (h *Handlers) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/files/navigate", h.Navigate).Methods("GET")
	api.HandleFunc("/files/random", h.RandomFile).Methods("GET")
	api.HandleFunc("/files/newest", h.NewestFile).Methods("GET")
	api.HandleFunc("/files/{id:[0-9]+}/like", h.ToggleLike).Methods("POST")
	api.HandleFunc("/files/{id:[0-9]+}/metadata", h.GetFileMetadata).Methods("GET")

	api.HandleFunc("/favorites/random", h.RandomFavorite).Methods("GET")
	api.HandleFunc("/favorites/latest", h.LatestFavorite).Methods("GET")

	api.HandleFunc("/thumbnail/{contentID:[0-9]+}", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/thumbs/broken", h.ReportBrokenThumb).Methods("POST")

	api.HandleFunc("/rescan", h.Rescan).Methods("POST")
	api.HandleFunc("/viewcontext", h.SetViewContext).Methods("POST")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")

	api.HandleFunc("/dirs", h.ListDirs).Methods("GET")
	api.HandleFunc("/dirs", h.TrackDir).Methods("POST")
	api.HandleFunc("/dirs", h.UntrackDir).Methods("DELETE")

	r.HandleFunc("/health", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/healthz", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET", "HEAD")

	r.Handle("/metrics", promhttp.Handler())
}
