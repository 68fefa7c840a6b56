package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lightview/internal/catalog"
	"lightview/internal/logging"
	"lightview/internal/metrics"
	"lightview/internal/scanner"
)

// DefaultDebounce is the quiet period before a directory's events trigger a
// scan.
const DefaultDebounce = 300 * time.Millisecond

// Watcher turns filesystem events under watched directories into scanner
// passes. It is a liveness optimization only: the engine stays correct with
// the watcher dead, just staler until the next explicit rescan.
type Watcher struct {
	store    *catalog.Store
	scanner  *scanner.Scanner
	debounce time.Duration

	fsw *fsnotify.Watcher
	deb *debouncer

	mu    sync.RWMutex
	roots map[string]*catalog.TrackedDirectory // watched root path -> record

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a watcher. A nil error does not guarantee events will flow on
// every filesystem; the watcher degrades to logging on platforms or mounts
// without notification support.
func New(store *catalog.Store, sc *scanner.Scanner, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:    store,
		scanner:  sc,
		debounce: debounce,
		fsw:      fsw,
		roots:    make(map[string]*catalog.TrackedDirectory),
	}
	w.deb = newDebouncer(debounce, w.scanDir)
	return w, nil
}

// Start begins processing events. Watched directories are added with Add.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop tears down the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.fsw.Close(); err != nil {
		logging.Debug("watcher close: %v", err)
	}
	w.deb.Stop()
	w.wg.Wait()
}

// Add registers a tracked directory and all its subdirectories for watching.
func (w *Watcher) Add(dir *catalog.TrackedDirectory) error {
	w.mu.Lock()
	w.roots[dir.Path] = dir
	w.mu.Unlock()

	count := 0
	err := filepath.WalkDir(dir.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logging.Warn("watcher: cannot read %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir.Path {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			logging.Warn("watcher: failed to watch %s: %v", path, err)
			metrics.WatcherErrorsTotal.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	metrics.WatchedDirectories.Add(float64(count))
	logging.Info("Watching %s (%d directories)", dir.Path, count)
	return nil
}

// Remove drops a tracked directory and its subdirectories from the watch
// set.
func (w *Watcher) Remove(path string) {
	w.mu.Lock()
	delete(w.roots, path)
	w.mu.Unlock()

	removed := 0
	prefix := strings.TrimSuffix(path, string(os.PathSeparator)) + string(os.PathSeparator)
	for _, watched := range w.fsw.WatchList() {
		if watched == path || strings.HasPrefix(watched, prefix) {
			if err := w.fsw.Remove(watched); err == nil {
				removed++
			}
		}
	}
	metrics.WatchedDirectories.Sub(float64(removed))
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrorsTotal.Inc()
			logging.Warn("watcher error: %v", err)

			// An error from the kernel queue can mean dropped events, so
			// nothing observed since the last pass can be trusted. Rescan
			// every watched root.
			w.rescanAll()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Skip hidden files
	if strings.Contains(event.Name, string(os.PathSeparator)+".") {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()
	logging.Debug("watcher event: %s %s", eventType(event.Op), event.Name)

	// New subdirectories join the watch set immediately, before their
	// contents settle, so nothing created inside them is missed.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				logging.Warn("watcher: failed to watch new directory %s: %v", event.Name, err)
				metrics.WatcherErrorsTotal.Inc()
			} else {
				metrics.WatchedDirectories.Inc()
			}
			w.deb.Hit(event.Name)
			return
		}
	}

	w.deb.Hit(filepath.Dir(event.Name))
}

// scanDir is the debouncer callback: one quiet directory, one partial scan.
func (w *Watcher) scanDir(dir string) {
	root := w.rootFor(dir)
	if root == nil {
		logging.Debug("watcher: event for untracked path %s", dir)
		return
	}

	metrics.WatcherRescansTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := w.scanner.ScanPath(ctx, root, dir); err != nil {
		logging.Error("watcher-triggered scan of %s failed: %v", dir, err)
	}
}

func (w *Watcher) rescanAll() {
	w.mu.RLock()
	roots := make([]*catalog.TrackedDirectory, 0, len(w.roots))
	for _, r := range w.roots {
		roots = append(roots, r)
	}
	w.mu.RUnlock()

	for _, root := range roots {
		metrics.WatcherRescansTotal.Inc()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		if _, err := w.scanner.Scan(ctx, root); err != nil {
			logging.Error("recovery scan of %s failed: %v", root.Path, err)
		}
		cancel()
	}
}

// rootFor finds the tracked root containing path.
func (w *Watcher) rootFor(path string) *catalog.TrackedDirectory {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for rootPath, root := range w.roots {
		prefix := strings.TrimSuffix(rootPath, string(os.PathSeparator)) + string(os.PathSeparator)
		if path == rootPath || strings.HasPrefix(path+string(os.PathSeparator), prefix) {
			return root
		}
	}
	return nil
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
