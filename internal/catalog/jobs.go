package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lightview/internal/logging"
)

// insertJobTx enqueues a job inside an existing transaction. INSERT OR IGNORE
// against the partial unique index makes the call idempotent: a pending or
// running job for the same (kind, target) absorbs the insert silently.
func insertJobTx(ctx context.Context, tx *sql.Tx, kind JobKind, fileID, contentID int64, priority int) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO jobs (kind, file_id, content_id, status, priority)
		VALUES (?, ?, ?, 'pending', ?)`,
		kind, fileID, contentID, priority)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertJob enqueues a single job. Returns true when a new row was created,
// false when an outstanding job for the same target absorbed it.
func (s *Store) InsertJob(ctx context.Context, kind JobKind, fileID, contentID int64, priority int) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_job", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return false, err
	}

	inserted, err := insertJobTx(ctx, tx, kind, fileID, contentID, priority)
	if err != nil {
		return false, s.EndBatch(tx, err)
	}

	err = s.EndBatch(tx, nil)
	return inserted, err
}

// ClaimNext atomically claims the highest-priority pending job for a worker
// and returns it, or ErrNotFound when nothing is eligible. Ordering is
// effective priority (priority + boost) descending, then insertion order.
//
// Jobs that target a content record are only eligible once that record
// exists; the EXISTS guard keeps a thumbnail job from running ahead of its
// hash even if one is ever enqueued early.
func (s *Store) ClaimNext(ctx context.Context, workerID string) (*Job, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("claim_job", start, err) }()

	// Claims are serialized under the store lock rather than relying on
	// transaction upgrade behavior, so concurrent workers never double-claim
	// and never trip SQLITE_BUSY racing each other.
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var j Job
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, file_id, content_id, priority, boost, attempts
		FROM jobs
		WHERE status = 'pending'
		  AND (content_id = 0 OR EXISTS (
			SELECT 1 FROM contents c WHERE c.id = jobs.content_id
		  ))
		ORDER BY priority + boost DESC, id ASC
		LIMIT 1`,
	).Scan(&j.ID, &j.Kind, &j.FileID, &j.ContentID, &j.Priority, &j.Boost, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', worker_id = ?, updated_at = strftime('%s', 'now')
		WHERE id = ? AND status = 'pending'`,
		workerID, j.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the row between select and update; treat as nothing eligible.
		err = ErrNotFound
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	j.Status = JobRunning
	j.WorkerID = workerID
	return &j, nil
}

// MarkDone transitions a running job to done.
func (s *Store) MarkDone(ctx context.Context, jobID int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("job_done", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'done', boost = 0, last_error = '',
			updated_at = strftime('%s', 'now')
		WHERE id = ? AND status = 'running'`, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// Requeue puts a running job back to pending with one more attempt on the
// clock and a lowered priority so a flaky file cannot starve fresh work.
func (s *Store) Requeue(ctx context.Context, jobID int64, errMsg string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("job_requeue", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', worker_id = '',
			attempts = attempts + 1, priority = priority - 1, last_error = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ? AND status = 'running'`, errMsg, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// MarkFailed transitions a running job to the terminal failed state.
func (s *Store) MarkFailed(ctx context.Context, jobID int64, errMsg string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("job_failed", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', worker_id = '',
			attempts = attempts + 1, boost = 0, last_error = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ? AND status = 'running'`, errMsg, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// RecoverStale resets jobs left running by a previous process back to
// pending. Called once at startup, before any worker claims.
func (s *Store) RecoverStale(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("recover_stale", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', worker_id = '',
			updated_at = strftime('%s', 'now')
		WHERE status = 'running'`)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if n > 0 {
		logging.Info("Recovered %d stale running jobs from previous run", n)
	}
	return n, err
}

// ResetBoosts clears every boost on pending jobs. Running jobs are never
// touched: once claimed, a job keeps running regardless of view changes.
func (s *Store) ResetBoosts(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_boosts", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET boost = 0 WHERE status = 'pending' AND boost != 0`)
	return err
}

// BoostFile raises the boost on pending jobs targeting a file.
func (s *Store) BoostFile(ctx context.Context, fileID int64, boost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET boost = ? WHERE status = 'pending' AND file_id = ?`,
		boost, fileID)
	return err
}

// BoostContent raises the boost on pending jobs targeting a content record.
func (s *Store) BoostContent(ctx context.Context, contentID int64, boost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET boost = ? WHERE status = 'pending' AND content_id = ?`,
		boost, contentID)
	return err
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var j Job
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, file_id, content_id, status, priority, boost, attempts, worker_id, last_error
		FROM jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.Kind, &j.FileID, &j.ContentID, &j.Status, &j.Priority,
		&j.Boost, &j.Attempts, &j.WorkerID, &j.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs(ctx context.Context) (map[JobStatus]int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_jobs", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[JobStatus]int64)
	for rows.Next() {
		var status JobStatus
		var n int64
		if scanErr := rows.Scan(&status, &n); scanErr != nil {
			continue
		}
		counts[status] = n
	}

	err = rows.Err()
	return counts, err
}

// AggregateCounts collects the full status snapshot in one pass.
func (s *Store) AggregateCounts(ctx context.Context) (*Counts, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("aggregate_counts", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c Counts
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE retired = 0),
			(SELECT COUNT(*) FROM directories),
			(SELECT COUNT(*) FROM files WHERE retired = 0 AND content_id != 0),
			(SELECT COUNT(*) FROM files f JOIN contents c ON c.id = f.content_id
				WHERE f.retired = 0 AND c.thumb_ready = 1),
			(SELECT COUNT(*) FROM directories WHERE watched = 1),
			(SELECT COUNT(*) FROM jobs WHERE status = 'pending'),
			(SELECT COUNT(*) FROM jobs WHERE status = 'running'),
			(SELECT COUNT(*) FROM jobs WHERE status = 'done'),
			(SELECT COUNT(*) FROM jobs WHERE status = 'failed')`,
	).Scan(&c.Files, &c.Directories, &c.Hashed, &c.Thumbed, &c.Watched,
		&c.JobsPending, &c.JobsRunning, &c.JobsDone, &c.JobsFailed)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
