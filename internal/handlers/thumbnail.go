package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lightview/internal/catalog"
	"lightview/internal/logging"
)

// GetThumbnail serves the stored thumbnail JPEG for a content record.
// 404 covers both an unknown content id and a thumbnail still in the queue;
// the viewer polls again either way.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	contentID, err := strconv.ParseInt(mux.Vars(r)["contentID"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid content id", http.StatusBadRequest)
		return
	}

	thumb, err := h.store.GetThumb(r.Context(), contentID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "thumbnail not ready", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("get thumbnail %d failed: %v", contentID, err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb)))
	// Thumbnails are content-addressed: same id, same bytes, forever.
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := w.Write(thumb); err != nil {
		logging.Debug("thumbnail write aborted: %v", err)
	}
}

// BrokenThumbRequest reports a thumbnail the viewer failed to decode.
type BrokenThumbRequest struct {
	ContentID int64 `json:"contentId"`
}

// ReportBrokenThumb clears a stored thumbnail and re-enqueues its job.
func (h *Handlers) ReportBrokenThumb(w http.ResponseWriter, r *http.Request) {
	var req BrokenThumbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentID == 0 {
		writeJSONError(w, "contentId is required", http.StatusBadRequest)
		return
	}

	err := h.store.ResetThumb(r.Context(), req.ContentID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "content not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("reset thumbnail %d failed: %v", req.ContentID, err)
		writeJSONError(w, "reset failed", http.StatusInternalServerError)
		return
	}

	logging.Info("thumbnail %d reported broken, regenerating", req.ContentID)
	writeJSON(w, map[string]string{"status": "requeued"})
}
