package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TrackDir registers a directory root with the indexer. Re-tracking an
// existing path just updates the watched flag.
func (s *Store) TrackDir(ctx context.Context, path string, watched bool) (*TrackedDirectory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("track_dir", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	w := 0
	if watched {
		w = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directories (path, watched) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET watched = excluded.watched`,
		path, w)
	if err != nil {
		return nil, fmt.Errorf("failed to track directory: %w", err)
	}

	return s.getDirLocked(ctx, path)
}

// UntrackDir removes a directory root. Its file records are retired rather
// than deleted, and content records are left alone so re-tracking later
// reuses the existing hashes and thumbnails.
func (s *Store) UntrackDir(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("untrack_dir", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM directories WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return s.EndBatch(tx, ErrNotFound)
	}
	if err != nil {
		return s.EndBatch(tx, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE files SET retired = 1, updated_at = strftime('%s', 'now')
		WHERE dir_id = ? AND retired = 0`, id)
	if err != nil {
		return s.EndBatch(tx, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM directories WHERE id = ?`, id)
	return s.EndBatch(tx, err)
}

// GetDir retrieves a tracked directory by path.
func (s *Store) GetDir(ctx context.Context, path string) (*TrackedDirectory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.getDirLocked(ctx, path)
}

func (s *Store) getDirLocked(ctx context.Context, path string) (*TrackedDirectory, error) {
	var d TrackedDirectory
	var watched int
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, watched, created_at FROM directories WHERE path = ?`, path,
	).Scan(&d.ID, &d.Path, &watched, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.Watched = watched != 0
	d.CreatedAt = time.Unix(createdAt, 0)
	return &d, nil
}

// ListDirs returns all tracked directories ordered by path.
func (s *Store) ListDirs(ctx context.Context) ([]TrackedDirectory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_dirs", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, watched, created_at FROM directories ORDER BY path ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked directories: %w", err)
	}
	defer rows.Close()

	var dirs []TrackedDirectory
	for rows.Next() {
		var d TrackedDirectory
		var watched int
		var createdAt int64
		if scanErr := rows.Scan(&d.ID, &d.Path, &watched, &createdAt); scanErr != nil {
			continue
		}
		d.Watched = watched != 0
		d.CreatedAt = time.Unix(createdAt, 0)
		dirs = append(dirs, d)
	}

	err = rows.Err()
	return dirs, err
}
