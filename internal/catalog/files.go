package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lightview/internal/logging"
	"lightview/internal/metrics"
)

const fileColumns = `id, path, dir_id, parent_path, name, kind, size, mod_time, liked, content_id, retired`

func scanFile(row interface{ Scan(...any) error }) (*FileRecord, error) {
	var f FileRecord
	var modTime int64
	var liked, retired int

	err := row.Scan(
		&f.ID, &f.Path, &f.DirID, &f.ParentPath, &f.Name, &f.Kind,
		&f.Size, &modTime, &liked, &f.ContentID, &retired,
	)
	if err != nil {
		return nil, err
	}

	f.ModTime = time.Unix(modTime, 0)
	f.Liked = liked != 0
	f.Retired = retired != 0
	return &f, nil
}

// UpsertFile inserts or updates a file record and, when the file is new or
// its content may have changed (size or mtime differ), clears the content
// link and enqueues a hash job. The record insert and the job insert commit
// in one transaction, so a crash can never leave a file without its hash job.
//
// Returns the file id and whether a hash job was enqueued. Re-upserting an
// unchanged file only refreshes updated_at (the scanner's "last seen" mark)
// and enqueues nothing.
func (s *Store) UpsertFile(ctx context.Context, f *FileRecord) (int64, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_file", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return 0, false, err
	}

	var id int64
	var prevSize, prevModTime int64
	var existed bool

	err = tx.QueryRowContext(ctx,
		`SELECT id, size, mod_time FROM files WHERE path = ?`, f.Path,
	).Scan(&id, &prevSize, &prevModTime)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existed = false
		err = nil
	case err != nil:
		return 0, false, s.EndBatch(tx, err)
	default:
		existed = true
	}

	changed := !existed || prevSize != f.Size || prevModTime != f.ModTime.Unix()

	if existed {
		// A changed file gets its content link cleared so listings stop
		// pointing at a stale thumbnail until the new hash lands.
		query := `
			UPDATE files SET
				dir_id = ?, parent_path = ?, name = ?, kind = ?, size = ?,
				mod_time = ?, retired = 0,
				updated_at = strftime('%s', 'now')`
		if changed {
			query += `, content_id = 0`
		}
		query += ` WHERE id = ?`

		_, err = tx.ExecContext(ctx, query,
			f.DirID, f.ParentPath, f.Name, f.Kind, f.Size, f.ModTime.Unix(), id)
		if err != nil {
			return 0, false, s.EndBatch(tx, err)
		}
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			INSERT INTO files (path, dir_id, parent_path, name, kind, size, mod_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.Path, f.DirID, f.ParentPath, f.Name, f.Kind, f.Size, f.ModTime.Unix())
		if err != nil {
			return 0, false, s.EndBatch(tx, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, s.EndBatch(tx, err)
		}
	}

	enqueued := false
	if changed {
		enqueued, err = insertJobTx(ctx, tx, JobHash, id, 0, PriorityHash)
		if err != nil {
			return 0, false, s.EndBatch(tx, err)
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return 0, false, err
	}

	if enqueued {
		metrics.JobsEnqueuedTotal.WithLabelValues(string(JobHash)).Inc()
	}

	f.ID = id
	return id, enqueued, nil
}

// GetFileByID retrieves a single file by id. Retired files are still
// returned; callers that care check the Retired flag.
func (s *Store) GetFileByID(ctx context.Context, id int64) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// GetFileByPath retrieves a single file by path.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// ListDir returns the live files directly under a directory, ordered by
// name (case-insensitive).
func (s *Store) ListDir(ctx context.Context, dir string) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_dir", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE parent_path = ? AND retired = 0
		ORDER BY name COLLATE NOCASE ASC`, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			logging.Error("failed to scan file row: %v", scanErr)
			continue
		}
		files = append(files, *f)
	}

	err = rows.Err()
	return files, err
}

// ListAll returns every live file in the catalog, ordered by name
// (case-insensitive).
func (s *Store) ListAll(ctx context.Context) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_all", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE retired = 0
		ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			logging.Error("failed to scan file row: %v", scanErr)
			continue
		}
		files = append(files, *f)
	}

	err = rows.Err()
	return files, err
}

// Navigate resolves the directory delta steps away from dir in the sorted
// list of populated directories, wrapping around at both ends. A dir not in
// the list lands on the nearest following entry before the delta applies.
func (s *Store) Navigate(ctx context.Context, dir string, delta int) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("navigate", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT parent_path FROM files
		WHERE retired = 0
		ORDER BY parent_path COLLATE NOCASE ASC`)
	if err != nil {
		return "", fmt.Errorf("failed to list directories: %w", err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var p string
		if scanErr := rows.Scan(&p); scanErr != nil {
			continue
		}
		dirs = append(dirs, p)
	}
	if err = rows.Err(); err != nil {
		return "", err
	}

	if len(dirs) == 0 {
		return "", ErrNotFound
	}

	idx := 0
	for i, p := range dirs {
		if p >= dir {
			idx = i
			break
		}
	}

	idx = (idx + delta) % len(dirs)
	if idx < 0 {
		idx += len(dirs)
	}
	return dirs[idx], nil
}

// RandomFile returns a uniformly random live file.
func (s *Store) RandomFile(ctx context.Context) (*FileRecord, error) {
	return s.pickFile(ctx, "random_file",
		`SELECT `+fileColumns+` FROM files WHERE retired = 0 ORDER BY RANDOM() LIMIT 1`)
}

// NewestFile returns the live file with the most recent modification time.
func (s *Store) NewestFile(ctx context.Context) (*FileRecord, error) {
	return s.pickFile(ctx, "newest_file",
		`SELECT `+fileColumns+` FROM files WHERE retired = 0 ORDER BY mod_time DESC, id DESC LIMIT 1`)
}

// RandomFavorite returns a uniformly random liked live file.
func (s *Store) RandomFavorite(ctx context.Context) (*FileRecord, error) {
	return s.pickFile(ctx, "random_favorite",
		`SELECT `+fileColumns+` FROM files WHERE retired = 0 AND liked = 1 ORDER BY RANDOM() LIMIT 1`)
}

// LatestFavorite returns the most recently liked live file.
func (s *Store) LatestFavorite(ctx context.Context) (*FileRecord, error) {
	return s.pickFile(ctx, "latest_favorite",
		`SELECT `+fileColumns+` FROM files WHERE retired = 0 AND liked = 1 ORDER BY liked_at DESC, id DESC LIMIT 1`)
}

func (s *Store) pickFile(ctx context.Context, op, query string) (*FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	f, err := scanFile(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	return f, err
}

// ToggleLike flips the liked flag on a file and returns the new state.
func (s *Store) ToggleLike(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("toggle_like", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET
			liked = CASE WHEN liked = 0 THEN 1 ELSE 0 END,
			liked_at = CASE WHEN liked = 0 THEN strftime('%s', 'now') ELSE liked_at END
		WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return false, err
	}

	var liked int
	err = s.db.QueryRowContext(ctx, `SELECT liked FROM files WHERE id = ?`, id).Scan(&liked)
	return liked != 0, err
}

// RetireMissing marks every live file under dirID whose updated_at predates
// cutoff as retired and returns the count. The scanner refreshes updated_at
// on every file it sees, so rows older than the scan's start time are gone
// from disk.
func (s *Store) RetireMissing(ctx context.Context, dirID int64, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("retire_missing", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET retired = 1, updated_at = strftime('%s', 'now')
		WHERE dir_id = ? AND retired = 0 AND updated_at < ?`,
		dirID, cutoff.Unix())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// RetireMissingUnder is RetireMissing scoped to a path prefix, for partial
// scans triggered by filesystem events. substr comparison instead of LIKE
// keeps wildcard characters in paths from widening the sweep.
func (s *Store) RetireMissingUnder(ctx context.Context, prefix string, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("retire_missing_under", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET retired = 1, updated_at = strftime('%s', 'now')
		WHERE retired = 0 AND updated_at < ? AND substr(path, 1, length(?)) = ?`,
		cutoff.Unix(), prefix, prefix)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// FileForContent returns a live file record whose bytes back the given
// content record. Any one will do: all of them hashed to the same
// fingerprint. ErrNotFound means no live path carries these bytes anymore.
func (s *Store) FileForContent(ctx context.Context, contentID int64) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE content_id = ? AND retired = 0
		 ORDER BY id ASC LIMIT 1`, contentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// LinkContent points a file at its content record. Called by the hash worker
// after the contents row exists.
func (s *Store) LinkContent(ctx context.Context, fileID, contentID int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("link_content", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET content_id = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?`, contentID, fileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}
