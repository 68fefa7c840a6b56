package jobs

import (
	"context"

	"lightview/internal/logging"
	"lightview/internal/metrics"
)

// ViewEntry is one position in the viewer's current list. Either id may be
// zero when unknown (a file not yet hashed has no content id).
type ViewEntry struct {
	FileID    int64 `json:"fileId"`
	ContentID int64 `json:"contentId"`
}

// SetViewContext reprioritizes pending jobs around the viewer's cursor.
// Previous boosts are cleared first, so each call fully replaces the last
// view context. The entry under the cursor gets MaxBoost; boost decays
// linearly with distance, over a longer window ahead of the cursor than
// behind it, because the next file the user sees is almost always forward.
//
// Running jobs are never touched: a claim already made keeps its worker.
func (q *Queue) SetViewContext(ctx context.Context, entries []ViewEntry, cursor int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.ResetBoosts(ctx); err != nil {
		return err
	}

	if len(entries) == 0 {
		metrics.ViewContextUpdatesTotal.Inc()
		return nil
	}

	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(entries) {
		cursor = len(entries) - 1
	}

	boosted := 0
	for i, e := range entries {
		var boost int
		switch {
		case i >= cursor:
			boost = q.decayedBoost(i-cursor, q.opts.ViewAhead)
		default:
			boost = q.decayedBoost(cursor-i, q.opts.ViewBehind)
		}
		if boost <= 0 {
			continue
		}

		if e.FileID != 0 {
			if err := q.store.BoostFile(ctx, e.FileID, boost); err != nil {
				return err
			}
		}
		if e.ContentID != 0 {
			if err := q.store.BoostContent(ctx, e.ContentID, boost); err != nil {
				return err
			}
		}
		boosted++
	}

	metrics.ViewContextUpdatesTotal.Inc()
	logging.Debug("view context updated: %d entries, cursor %d, %d boosted", len(entries), cursor, boosted)
	return nil
}

// decayedBoost computes the boost for an entry at the given distance from
// the cursor, decaying MaxBoost linearly to zero past the window.
func (q *Queue) decayedBoost(distance, window int) int {
	if distance > window {
		return 0
	}
	return q.opts.MaxBoost * (window + 1 - distance) / (window + 1)
}
