package watcher

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"lightview/internal/catalog"
	"lightview/internal/scanner"
)

func setupWatcher(t testing.TB) (*Watcher, *catalog.Store, *catalog.TrackedDirectory, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := catalog.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mediaDir := t.TempDir()
	dir, err := store.TrackDir(context.Background(), mediaDir, true)
	if err != nil {
		t.Fatalf("TrackDir failed: %v", err)
	}

	// Short debounce keeps the tests fast.
	w, err := New(store, scanner.New(store), 50*time.Millisecond)
	if err != nil {
		t.Skipf("fsnotify unavailable on this platform: %v", err)
	}
	t.Cleanup(w.Stop)

	return w, store, dir, mediaDir
}

func writeJPEG(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
}

// waitForFile polls the catalog until the path appears or the deadline hits.
func waitForFile(t testing.TB, store *catalog.Store, path string, timeout time.Duration) *catalog.FileRecord {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f, err := store.GetFileByPath(context.Background(), path)
		if err == nil {
			return f
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("GetFileByPath failed: %v", err)
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("File %s never appeared in the catalog", path)
	return nil
}

func TestWatcherIndexesNewFile(t *testing.T) {
	w, store, dir, mediaDir := setupWatcher(t)

	w.Start(context.Background())
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	path := filepath.Join(mediaDir, "dropped.jpg")
	writeJPEG(t, path)

	f := waitForFile(t, store, path, 5*time.Second)
	if f.Kind != "image" {
		t.Errorf("Kind = %s, want image", f.Kind)
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	w, store, dir, mediaDir := setupWatcher(t)

	w.Start(context.Background())
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Create a directory after the watch is established, then drop a file
	// into it. The new directory must have joined the watch set.
	sub := filepath.Join(mediaDir, "newalbum")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	// Give the create event time to land before writing inside.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "first.jpg")
	writeJPEG(t, path)

	waitForFile(t, store, path, 5*time.Second)
}

func TestWatcherRemoveStopsEvents(t *testing.T) {
	w, store, dir, mediaDir := setupWatcher(t)

	w.Start(context.Background())
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	w.Remove(dir.Path)

	path := filepath.Join(mediaDir, "after-remove.jpg")
	writeJPEG(t, path)

	time.Sleep(500 * time.Millisecond)

	if _, err := store.GetFileByPath(context.Background(), path); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("File indexed after Remove, error = %v, want ErrNotFound", err)
	}
}

func TestRootFor(t *testing.T) {
	w, _, dir, mediaDir := setupWatcher(t)

	w.mu.Lock()
	w.roots[dir.Path] = dir
	w.mu.Unlock()

	if got := w.rootFor(mediaDir); got == nil || got.ID != dir.ID {
		t.Error("rootFor did not match the root itself")
	}
	if got := w.rootFor(filepath.Join(mediaDir, "sub", "deep")); got == nil {
		t.Error("rootFor did not match a nested path")
	}
	if got := w.rootFor(mediaDir + "-sibling"); got != nil {
		t.Error("rootFor matched a sibling path sharing the root as name prefix")
	}
	if got := w.rootFor("/somewhere/else"); got != nil {
		t.Error("rootFor matched an unrelated path")
	}
}

func TestEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		if got := eventType(tt.op); got != tt.want {
			t.Errorf("eventType(%v) = %q, want %q", tt.op, got, tt.want)
		}
	}
}
