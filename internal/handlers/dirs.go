package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"lightview/internal/catalog"
	"lightview/internal/logging"
)

// TrackDirRequest registers a library root.
type TrackDirRequest struct {
	Path    string `json:"path"`
	Watched bool   `json:"watched"`
}

// ListDirs returns every tracked directory.
func (h *Handlers) ListDirs(w http.ResponseWriter, r *http.Request) {
	dirs, err := h.store.ListDirs(r.Context())
	if err != nil {
		logging.Error("list dirs failed: %v", err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}

	if dirs == nil {
		dirs = []catalog.TrackedDirectory{}
	}
	writeJSON(w, dirs)
}

// TrackDir registers a directory and kicks off its initial scan in the
// background; the response does not wait for the walk.
func (h *Handlers) TrackDir(w http.ResponseWriter, r *http.Request) {
	var req TrackDirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	if !filepath.IsAbs(req.Path) {
		writeJSONError(w, "path must be absolute", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		writeJSONError(w, "path is not a readable directory", http.StatusBadRequest)
		return
	}

	dir, err := h.store.TrackDir(r.Context(), filepath.Clean(req.Path), req.Watched)
	if err != nil {
		logging.Error("track dir %s failed: %v", req.Path, err)
		writeJSONError(w, "track failed", http.StatusInternalServerError)
		return
	}

	if req.Watched && h.watcher != nil {
		if err := h.watcher.Add(dir); err != nil {
			logging.Warn("failed to watch %s: %v", dir.Path, err)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.scanner.Scan(ctx, dir); err != nil {
			logging.Error("initial scan of %s failed: %v", dir.Path, err)
		}
	}()

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dir)
}

// UntrackDir removes ?path= from the tracked set. Its files are retired;
// content records survive for a future re-track.
func (h *Handlers) UntrackDir(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	if h.watcher != nil {
		h.watcher.Remove(path)
	}

	err := h.store.UntrackDir(r.Context(), path)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "directory not tracked", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("untrack dir %s failed: %v", path, err)
		writeJSONError(w, "untrack failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "untracked"})
}
