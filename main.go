package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"lightview/internal/catalog"
	"lightview/internal/handlers"
	"lightview/internal/jobs"
	"lightview/internal/logging"
	"lightview/internal/middleware"
	"lightview/internal/scanner"
	"lightview/internal/startup"
	"lightview/internal/status"
	"lightview/internal/watcher"
	"lightview/internal/worker"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Catalog store: the one fatal dependency. Everything after this
	// degrades instead of exiting.
	dbStart := time.Now()
	store, err := catalog.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize catalog: %v", err)
	}
	defer store.Close()
	startup.LogDatabaseInit(config.DatabasePath, time.Since(dbStart))

	queue := jobs.NewQueue(store, jobs.Options{
		ViewAhead:  config.ViewAhead,
		ViewBehind: config.ViewBehind,
		MaxBoost:   config.MaxBoost,
	})

	// Jobs left running by a previous process go back to pending before
	// any worker claims.
	if _, err := queue.RecoverStale(ctx); err != nil {
		logging.Error("Failed to recover stale jobs: %v", err)
	}

	sc := scanner.New(store)

	// Register TRACK_DIRS from the environment. Directories tracked via
	// the API in earlier runs are already in the catalog.
	for _, dir := range config.TrackDirs {
		if _, err := store.TrackDir(ctx, dir, config.WatchEnabled); err != nil {
			logging.Error("Failed to track %s: %v", dir, err)
		}
	}

	dirs, err := store.ListDirs(ctx)
	if err != nil {
		logging.Fatal("Failed to list tracked directories: %v", err)
	}

	var w *watcher.Watcher
	if config.WatchEnabled {
		w, err = watcher.New(store, sc, config.Debounce)
		if err != nil {
			// Watching is a liveness optimization; the engine stays
			// correct without it.
			logging.Warn("Watcher unavailable, relying on explicit rescans: %v", err)
			w = nil
		}
	}

	startup.LogWorkersInit(config.Workers)
	pool := worker.NewPool(store, queue, config.Workers, config.ThumbSize)
	pool.Start(ctx)

	if w != nil {
		w.Start(ctx)
		for i := range dirs {
			if !dirs[i].Watched {
				continue
			}
			if err := w.Add(&dirs[i]); err != nil {
				logging.Warn("Failed to watch %s: %v", dirs[i].Path, err)
			}
		}
	}

	if config.ScanOnStart {
		go func() {
			for i := range dirs {
				scanCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
				if _, err := sc.Scan(scanCtx, &dirs[i]); err != nil {
					logging.Error("Startup scan of %s failed: %v", dirs[i].Path, err)
				}
				cancel()
			}
		}()
	}

	// Periodic gauge refresh for queue depth and DB connections.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			queue.UpdateDepthMetrics(ctx)
			store.UpdateDBMetrics()
		}
	}()

	agg := status.New(store)
	h := handlers.New(store, queue, sc, w, agg)

	router := mux.NewRouter()
	h.Routes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(
		middleware.Metrics(middleware.DefaultMetricsConfig())(router))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, pool, w)

	h.SetReady()
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, pool *worker.Pool, w *watcher.Watcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w != nil {
		startup.LogShutdownStep("Stopping watcher")
		w.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	startup.LogShutdownStep("Stopping worker pool")
	pool.Stop()
	startup.LogShutdownStepComplete("Worker pool stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
