package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lightview/internal/metrics"
)

// UpsertContent inserts a content record for a fingerprint, or returns the
// existing one. The second return is true when the row already existed, in
// which case the caller must not enqueue new derived work: the thumbnail and
// metadata either exist already or have live jobs.
//
// Concurrent hash jobs over identical bytes race here; the UNIQUE constraint
// on fingerprint guarantees exactly one row wins and the loser reads it back.
func (s *Store) UpsertContent(ctx context.Context, fingerprint string) (*ContentRecord, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_content", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (fingerprint) VALUES (?)
		ON CONFLICT(fingerprint) DO NOTHING`, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert content: %w", err)
	}

	inserted, _ := res.RowsAffected()

	c, err := s.getContentByFingerprintLocked(ctx, fingerprint)
	if err != nil {
		return nil, false, err
	}
	return c, inserted == 0, nil
}

// GetContentByID retrieves a content record by id.
func (s *Store) GetContentByID(ctx context.Context, id int64) (*ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.scanContent(s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, width, height, format, duration_ms, bitrate, codec,
		       pnginfo, thumb_ready, meta_ready
		FROM contents WHERE id = ?`, id))
}

func (s *Store) getContentByFingerprintLocked(ctx context.Context, fingerprint string) (*ContentRecord, error) {
	return s.scanContent(s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, width, height, format, duration_ms, bitrate, codec,
		       pnginfo, thumb_ready, meta_ready
		FROM contents WHERE fingerprint = ?`, fingerprint))
}

func (s *Store) scanContent(row *sql.Row) (*ContentRecord, error) {
	var c ContentRecord
	var thumbReady, metaReady int

	err := row.Scan(
		&c.ID, &c.Fingerprint, &c.Width, &c.Height, &c.Format, &c.DurationMS,
		&c.Bitrate, &c.Codec, &c.PNGInfo, &thumbReady, &metaReady,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.ThumbReady = thumbReady != 0
	c.MetaReady = metaReady != 0
	return &c, nil
}

// SaveThumb stores the thumbnail blob and flips thumb_ready in one statement,
// so a reader can never observe the flag without the blob.
func (s *Store) SaveThumb(ctx context.Context, contentID int64, jpeg []byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_thumb", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE contents SET thumb = ?, thumb_ready = 1 WHERE id = ?`,
		jpeg, contentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// GetThumb returns the stored thumbnail JPEG for a content record.
// ErrNotFound covers both a missing row and a not-yet-ready thumbnail.
func (s *Store) GetThumb(ctx context.Context, contentID int64) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumb", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var thumb []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT thumb FROM contents WHERE id = ? AND thumb_ready = 1`, contentID,
	).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if len(thumb) == 0 {
		err = ErrNotFound
		return nil, err
	}
	return thumb, nil
}

// SaveMetadata stores probed media metadata and flips meta_ready.
func (s *Store) SaveMetadata(ctx context.Context, c *ContentRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_metadata", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE contents SET
			width = ?, height = ?, format = ?, duration_ms = ?,
			bitrate = ?, codec = ?, pnginfo = ?, meta_ready = 1
		WHERE id = ?`,
		c.Width, c.Height, c.Format, c.DurationMS, c.Bitrate, c.Codec, c.PNGInfo, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// ResetThumb clears a broken thumbnail and re-enqueues its thumbnail job.
// Used when the viewer reports a thumbnail that fails to decode.
func (s *Store) ResetThumb(ctx context.Context, contentID int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_thumb", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE contents SET thumb = NULL, thumb_ready = 0 WHERE id = ?`, contentID)
	if err != nil {
		return s.EndBatch(tx, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.EndBatch(tx, ErrNotFound)
	}

	enqueued, err := insertJobTx(ctx, tx, JobThumbnail, 0, contentID, PriorityThumbnail)
	if err != nil {
		return s.EndBatch(tx, err)
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return err
	}

	if enqueued {
		metrics.JobsEnqueuedTotal.WithLabelValues(string(JobThumbnail)).Inc()
	}
	return nil
}

// PruneOrphans deletes content records no live file references. This is an
// explicit maintenance call, never run implicitly, so a deleted file that
// comes back keeps its hash/thumbnail for free in the meantime.
func (s *Store) PruneOrphans(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_orphans", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM contents WHERE id NOT IN (
			SELECT content_id FROM files WHERE retired = 0 AND content_id != 0
		)`)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
