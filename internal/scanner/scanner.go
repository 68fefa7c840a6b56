package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lightview/internal/catalog"
	"lightview/internal/logging"
	"lightview/internal/mediatypes"
	"lightview/internal/metrics"
)

// Scanner reconciles the catalog with the filesystem. Each pass walks a
// tree, upserts every media file it finds (which enqueues hash jobs for new
// or changed content), and retires records for paths that are gone.
type Scanner struct {
	store *catalog.Store
}

// New creates a scanner over the catalog store.
func New(store *catalog.Store) *Scanner {
	return &Scanner{store: store}
}

// Scan walks a full tracked directory. Returns the number of files that
// were new or changed (and therefore got a hash job).
func (s *Scanner) Scan(ctx context.Context, dir *catalog.TrackedDirectory) (int, error) {
	return s.scanTree(ctx, dir, dir.Path, "full")
}

// ScanPath walks one subtree of a tracked directory, for watcher-triggered
// partial passes. The retire sweep is scoped to the subtree so untouched
// siblings keep their records.
func (s *Scanner) ScanPath(ctx context.Context, dir *catalog.TrackedDirectory, path string) (int, error) {
	return s.scanTree(ctx, dir, path, "partial")
}

func (s *Scanner) scanTree(ctx context.Context, dir *catalog.TrackedDirectory, root, trigger string) (int, error) {
	start := time.Now()
	metrics.ScannerRunsTotal.WithLabelValues(trigger).Inc()

	logging.Debug("scanning %s (%s)", root, trigger)

	seen := 0
	newFiles := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if walkErr != nil {
			// Unreadable entries are logged and skipped, never fatal.
			logging.Warn("scan: cannot read %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		kind := mediatypes.KindForExt(ext)
		if kind == mediatypes.KindOther {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("scan: cannot stat %s: %v", path, err)
			return nil
		}

		seen++
		metrics.ScannerFilesSeen.Inc()

		rec := &catalog.FileRecord{
			Path:       path,
			DirID:      dir.ID,
			ParentPath: filepath.Dir(path),
			Name:       name,
			Kind:       kind,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		}

		_, enqueued, err := s.store.UpsertFile(ctx, rec)
		if err != nil {
			logging.Error("scan: failed to upsert %s: %v", path, err)
			return nil
		}
		if enqueued {
			newFiles++
			metrics.ScannerFilesNew.Inc()
		}

		return nil
	})
	if err != nil {
		// A vanished root is a normal outcome (directory deleted between
		// the event and the scan); the sweep below retires its files.
		if !os.IsNotExist(err) {
			return newFiles, err
		}
		logging.Debug("scan root vanished: %s", root)
	}

	// Trailing separator keeps the sweep off sibling directories that
	// share the root as a name prefix.
	sweepPrefix := strings.TrimSuffix(root, string(os.PathSeparator)) + string(os.PathSeparator)
	retired, err := s.store.RetireMissingUnder(ctx, sweepPrefix, start)
	if err != nil {
		return newFiles, err
	}
	if retired > 0 {
		metrics.ScannerFilesRetired.Add(float64(retired))
		logging.Info("scan %s: retired %d vanished files", root, retired)
	}

	took := time.Since(start)
	metrics.ScannerLastRunDuration.Set(took.Seconds())
	logging.Info("scan %s complete: %d seen, %d new/changed, %d retired in %v",
		root, seen, newFiles, retired, took.Round(time.Millisecond))

	return newFiles, nil
}
