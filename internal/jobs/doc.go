// Package jobs implements the job queue and the view-context prioritizer on
// top of the durable jobs table in the catalog store. The queue mutex is the
// only hard critical section in the engine: enqueue, claim, and
// reprioritization are mutually exclusive, and everything else reads the
// last committed database state.
package jobs
