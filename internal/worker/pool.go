package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lightview/internal/catalog"
	"lightview/internal/jobs"
	"lightview/internal/logging"
	"lightview/internal/metrics"
)

// Idle backoff bounds. A worker that finds no eligible job sleeps, doubling
// up to the max, and snaps back to the min after its next successful claim.
const (
	idleBackoffMin = 500 * time.Millisecond
	idleBackoffMax = 2 * time.Second
)

// Pool runs N workers that claim jobs from the queue and execute them.
type Pool struct {
	store     *catalog.Store
	queue     *jobs.Queue
	size      int
	thumbSize int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a worker pool. size must be at least 1; thumbSize of 0
// uses DefaultThumbSize.
func NewPool(store *catalog.Store, queue *jobs.Queue, size, thumbSize int) *Pool {
	if size < 1 {
		size = 1
	}
	if thumbSize <= 0 {
		thumbSize = DefaultThumbSize
	}
	return &Pool{
		store:     store,
		queue:     queue,
		size:      size,
		thumbSize: thumbSize,
	}
}

// Start launches the workers. They run until Stop is called or ctx is
// canceled.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	logging.Info("Starting %d indexing workers", p.size)

	for i := 0; i < p.size; i++ {
		workerID := uuid.NewString()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, workerID)
		}()
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	logging.Info("Worker pool stopped")
}

func (p *Pool) run(ctx context.Context, workerID string) {
	logging.Debug("worker %s started", workerID)
	backoff := idleBackoffMin

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Claim(ctx, workerID)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) && ctx.Err() == nil {
				logging.Error("worker %s claim failed: %v", workerID, err)
			}
			metrics.WorkerIdleWakeups.Inc()

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > idleBackoffMax {
				backoff = idleBackoffMax
			}
			continue
		}
		backoff = idleBackoffMin

		p.execute(ctx, job)
	}
}

// execute runs one claimed job and records its outcome. Job errors never
// escape: they either requeue the job or fail it terminally.
func (p *Pool) execute(ctx context.Context, job *catalog.Job) {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	start := time.Now()
	logging.Debug("executing job %d: %s (file=%d content=%d priority=%d)",
		job.ID, job.Kind, job.FileID, job.ContentID, job.Effective())

	var err error
	switch job.Kind {
	case catalog.JobHash:
		err = p.runHash(ctx, job)
	case catalog.JobThumbnail:
		err = p.runThumbnail(ctx, job)
	case catalog.JobMetadata:
		err = p.runMetadata(ctx, job)
	default:
		err = fmt.Errorf("%w: unknown job kind %q", ErrUnsupported, job.Kind)
	}

	if err != nil {
		if failErr := p.queue.Fail(ctx, job, err, permanent(err)); failErr != nil && ctx.Err() == nil {
			logging.Error("failed to record job %d failure: %v", job.ID, failErr)
		}
		return
	}

	if doneErr := p.queue.Complete(ctx, job, time.Since(start)); doneErr != nil && ctx.Err() == nil {
		logging.Error("failed to record job %d completion: %v", job.ID, doneErr)
	}
}

// runHash fingerprints the file, links it to its content record, and
// enqueues derived work. A fingerprint that already has a content record
// links without new jobs: the thumbnail and metadata either exist or have
// live jobs already, so identical bytes are never processed twice.
func (p *Pool) runHash(ctx context.Context, job *catalog.Job) error {
	file, err := p.store.GetFileByID(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: file record %d gone", ErrFileVanished, job.FileID)
		}
		return err
	}
	if file.Retired {
		return fmt.Errorf("%w: file %d retired", ErrFileVanished, file.ID)
	}

	fp, err := Fingerprint(file.Path)
	if err != nil {
		return err
	}

	content, existed, err := p.store.UpsertContent(ctx, fp)
	if err != nil {
		return err
	}

	if err := p.store.LinkContent(ctx, file.ID, content.ID); err != nil {
		return err
	}

	if existed {
		logging.Debug("file %d deduplicated onto content %d", file.ID, content.ID)
		return nil
	}

	if _, err := p.queue.Enqueue(ctx, catalog.JobThumbnail, 0, content.ID); err != nil {
		return err
	}
	if _, err := p.queue.Enqueue(ctx, catalog.JobMetadata, 0, content.ID); err != nil {
		return err
	}
	return nil
}

func (p *Pool) runThumbnail(ctx context.Context, job *catalog.Job) error {
	file, err := p.store.FileForContent(ctx, job.ContentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: no live file for content %d", ErrFileVanished, job.ContentID)
		}
		return err
	}

	thumb, err := GenerateThumbnail(ctx, file.Path, file.Kind, p.thumbSize)
	if err != nil {
		return err
	}

	return p.store.SaveThumb(ctx, job.ContentID, thumb)
}

func (p *Pool) runMetadata(ctx context.Context, job *catalog.Job) error {
	file, err := p.store.FileForContent(ctx, job.ContentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: no live file for content %d", ErrFileVanished, job.ContentID)
		}
		return err
	}

	content := &catalog.ContentRecord{ID: job.ContentID}
	if err := ProbeMedia(ctx, file.Path, file.Kind, content); err != nil {
		return err
	}

	return p.store.SaveMetadata(ctx, content)
}
