package status

import (
	"context"
	"sync"
	"time"

	"lightview/internal/catalog"
)

// cacheTTL keeps 1-2s UI polling from hitting the database on every poll.
const cacheTTL = time.Second

// Snapshot is the engine's aggregate state at one moment. Fields are
// eventually consistent with each other: the snapshot is a progress
// indicator, not a ledger.
type Snapshot struct {
	catalog.Counts
	GeneratedAt time.Time `json:"generatedAt"`
}

// Aggregator serves cached status snapshots.
type Aggregator struct {
	store *catalog.Store

	mu     sync.Mutex
	cached *Snapshot
}

// New creates an aggregator over the catalog store.
func New(store *catalog.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Snapshot returns the current counts, reusing the previous result while it
// is fresh. Concurrent callers share one database pass.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Since(a.cached.GeneratedAt) < cacheTTL {
		return a.cached, nil
	}

	counts, err := a.store.AggregateCounts(ctx)
	if err != nil {
		// Serve a stale snapshot over an error if we have one.
		if a.cached != nil {
			return a.cached, nil
		}
		return nil, err
	}

	a.cached = &Snapshot{
		Counts:      *counts,
		GeneratedAt: time.Now(),
	}
	return a.cached, nil
}

// Invalidate drops the cached snapshot. Tests use this; production callers
// just wait out the TTL.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = nil
}
