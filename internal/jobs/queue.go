package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"lightview/internal/catalog"
	"lightview/internal/logging"
	"lightview/internal/metrics"
)

// DefaultMaxAttempts is how many times a job runs before failing terminally.
const DefaultMaxAttempts = 3

// Options tunes queue behavior. Zero values fall back to defaults.
type Options struct {
	// MaxAttempts is the attempt ceiling before a job fails terminally.
	MaxAttempts int
	// ViewAhead is how many entries past the cursor get boosted.
	ViewAhead int
	// ViewBehind is how many entries before the cursor get boosted.
	ViewBehind int
	// MaxBoost is the boost applied at the cursor itself.
	MaxBoost int
}

func (o *Options) fillDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.ViewAhead <= 0 {
		o.ViewAhead = 8
	}
	if o.ViewBehind <= 0 {
		o.ViewBehind = 4
	}
	if o.MaxBoost <= 0 {
		o.MaxBoost = 100
	}
}

// Queue fronts the durable jobs table. The jobs table itself is the source
// of truth and the durability boundary; the queue adds mutual exclusion
// between enqueue, claim, and reprioritization, plus the retry policy.
type Queue struct {
	store *catalog.Store
	opts  Options

	mu sync.Mutex
}

// NewQueue creates a queue over the catalog store.
func NewQueue(store *catalog.Store, opts Options) *Queue {
	opts.fillDefaults()
	return &Queue{
		store: store,
		opts:  opts,
	}
}

// Enqueue adds a job at its kind's base priority. Idempotent: an outstanding
// job for the same (kind, target) absorbs the call and Enqueue returns false.
func (q *Queue) Enqueue(ctx context.Context, kind catalog.JobKind, fileID, contentID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	inserted, err := q.store.InsertJob(ctx, kind, fileID, contentID, catalog.BasePriority(kind))
	if err != nil {
		return false, err
	}

	if inserted {
		metrics.JobsEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	}
	return inserted, nil
}

// Claim hands the highest-priority eligible pending job to a worker, or
// catalog.ErrNotFound when the queue has nothing runnable.
func (q *Queue) Claim(ctx context.Context, workerID string) (*catalog.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.ClaimNext(ctx, workerID)
}

// Complete marks a claimed job done.
func (q *Queue) Complete(ctx context.Context, job *catalog.Job, took time.Duration) error {
	if err := q.store.MarkDone(ctx, job.ID); err != nil {
		return err
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(job.Kind), "done").Inc()
	metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(took.Seconds())
	return nil
}

// Fail records a job failure. Transient failures requeue at a lowered
// priority until the attempt ceiling; permanent failures (and exhausted
// retries) go terminal. The job row keeps the last error for status queries.
func (q *Queue) Fail(ctx context.Context, job *catalog.Job, jobErr error, permanent bool) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}

	// Attempts on the row is the count before this run.
	exhausted := job.Attempts+1 >= q.opts.MaxAttempts

	if permanent || exhausted {
		if err := q.store.MarkFailed(ctx, job.ID, msg); err != nil {
			return err
		}
		metrics.JobsCompletedTotal.WithLabelValues(string(job.Kind), "failed").Inc()
		logging.Warn("job %d (%s) failed terminally after %d attempts: %v",
			job.ID, job.Kind, job.Attempts+1, jobErr)
		return nil
	}

	if err := q.store.Requeue(ctx, job.ID, msg); err != nil {
		return err
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(job.Kind), "requeued").Inc()
	logging.Debug("job %d (%s) requeued (attempt %d/%d): %v",
		job.ID, job.Kind, job.Attempts+1, q.opts.MaxAttempts, jobErr)
	return nil
}

// RecoverStale resets jobs left running by a crashed process. Call once at
// startup before workers start claiming.
func (q *Queue) RecoverStale(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.RecoverStale(ctx)
}

// UpdateDepthMetrics refreshes the pending/running gauges from the store.
func (q *Queue) UpdateDepthMetrics(ctx context.Context) {
	counts, err := q.store.CountJobs(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Debug("failed to refresh queue depth metrics: %v", err)
		}
		return
	}

	metrics.JobsPending.Set(float64(counts[catalog.JobPending]))
	metrics.JobsRunning.Set(float64(counts[catalog.JobRunning]))
}
