package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"lightview/internal/catalog"
	"lightview/internal/jobs"
	"lightview/internal/logging"
)

// Rescan walks ?dir= (one tracked root) or every tracked root when dir is
// omitted. Responds with the number of new or changed files.
func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	dirParam := r.URL.Query().Get("dir")

	var roots []catalog.TrackedDirectory
	if dirParam != "" {
		root, err := h.store.GetDir(r.Context(), dirParam)
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "directory not tracked", http.StatusNotFound)
			return
		}
		if err != nil {
			writeJSONError(w, "query failed", http.StatusInternalServerError)
			return
		}
		roots = []catalog.TrackedDirectory{*root}
	} else {
		all, err := h.store.ListDirs(r.Context())
		if err != nil {
			writeJSONError(w, "query failed", http.StatusInternalServerError)
			return
		}
		roots = all
	}

	total := 0
	for i := range roots {
		n, err := h.scanner.Scan(r.Context(), &roots[i])
		if err != nil {
			logging.Error("rescan of %s failed: %v", roots[i].Path, err)
			writeJSONError(w, "scan failed", http.StatusInternalServerError)
			return
		}
		total += n
	}

	writeJSON(w, map[string]int{"new": total})
}

// ViewContextRequest carries the viewer's current list and cursor position.
type ViewContextRequest struct {
	Entries []jobs.ViewEntry `json:"entries"`
	Cursor  int              `json:"cursor"`
}

// SetViewContext reprioritizes pending jobs around what the user is looking
// at right now.
func (h *Handlers) SetViewContext(w http.ResponseWriter, r *http.Request) {
	var req ViewContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.queue.SetViewContext(r.Context(), req.Entries, req.Cursor); err != nil {
		logging.Error("view context update failed: %v", err)
		writeJSONError(w, "update failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// GetStatus serves the cached aggregate snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.agg.Snapshot(r.Context())
	if err != nil {
		logging.Error("status snapshot failed: %v", err)
		writeJSONError(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, snap)
}
