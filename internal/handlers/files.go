package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lightview/internal/catalog"
	"lightview/internal/logging"
)

// ListFiles returns live files ordered by name, filtered to ?dir= when the
// parameter is present and spanning the whole catalog when it is not.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")

	var files []catalog.FileRecord
	var err error
	if dir == "" {
		files, err = h.store.ListAll(r.Context())
	} else {
		files, err = h.store.ListDir(r.Context(), dir)
	}
	if err != nil {
		logging.Error("list files failed for %q: %v", dir, err)
		writeJSONError(w, "failed to list files", http.StatusInternalServerError)
		return
	}

	if files == nil {
		files = []catalog.FileRecord{}
	}
	writeJSON(w, files)
}

// NavigateResponse is the target directory and its file list, so the viewer
// can render the sibling directory without a second request.
type NavigateResponse struct {
	Dir   string               `json:"dir"`
	Files []catalog.FileRecord `json:"files"`
}

// Navigate resolves ?dir= moved by ?delta= steps through the sorted list of
// populated directories and returns the target's files.
func (h *Handlers) Navigate(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeJSONError(w, "dir is required", http.StatusBadRequest)
		return
	}

	delta := 1
	if d := r.URL.Query().Get("delta"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil {
			writeJSONError(w, "invalid delta", http.StatusBadRequest)
			return
		}
		delta = parsed
	}

	next, err := h.store.Navigate(r.Context(), dir, delta)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "no directories indexed", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("navigate failed from %s: %v", dir, err)
		writeJSONError(w, "navigation failed", http.StatusInternalServerError)
		return
	}

	files, err := h.store.ListDir(r.Context(), next)
	if err != nil {
		logging.Error("list files failed for %s: %v", next, err)
		writeJSONError(w, "failed to list files", http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []catalog.FileRecord{}
	}

	writeJSON(w, NavigateResponse{Dir: next, Files: files})
}

// RandomFile returns a uniformly random live file.
func (h *Handlers) RandomFile(w http.ResponseWriter, r *http.Request) {
	h.pickFile(w, r, h.store.RandomFile)
}

// NewestFile returns the most recently modified live file.
func (h *Handlers) NewestFile(w http.ResponseWriter, r *http.Request) {
	h.pickFile(w, r, h.store.NewestFile)
}

// RandomFavorite returns a random liked file.
func (h *Handlers) RandomFavorite(w http.ResponseWriter, r *http.Request) {
	h.pickFile(w, r, h.store.RandomFavorite)
}

// LatestFavorite returns the most recently liked file.
func (h *Handlers) LatestFavorite(w http.ResponseWriter, r *http.Request) {
	h.pickFile(w, r, h.store.LatestFavorite)
}

func (h *Handlers) pickFile(w http.ResponseWriter, r *http.Request,
	pick func(ctx context.Context) (*catalog.FileRecord, error)) {
	file, err := pick(r.Context())
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "no matching file", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("file pick failed: %v", err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, file)
}

// ToggleLike flips the liked flag on a file.
func (h *Handlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid file id", http.StatusBadRequest)
		return
	}

	liked, err := h.store.ToggleLike(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("toggle like failed for %d: %v", id, err)
		writeJSONError(w, "toggle failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]bool{"liked": liked})
}

// FileMeta joins a file record with its content record's probed metadata.
type FileMeta struct {
	File    *catalog.FileRecord    `json:"file"`
	Content *catalog.ContentRecord `json:"content,omitempty"`
}

// GetFileMetadata returns the file record plus whatever metadata the workers
// have produced so far. Content is null until the hash job lands.
func (h *Handlers) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid file id", http.StatusBadRequest)
		return
	}

	file, err := h.store.GetFileByID(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("get file %d failed: %v", id, err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}

	meta := FileMeta{File: file}
	if file.ContentID != 0 {
		content, err := h.store.GetContentByID(r.Context(), file.ContentID)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			logging.Error("get content %d failed: %v", file.ContentID, err)
			writeJSONError(w, "query failed", http.StatusInternalServerError)
			return
		}
		meta.Content = content
	}

	writeJSON(w, meta)
}
