// Package worker implements the executors behind the job queue: content
// hashing, thumbnail rendering, and media metadata probing, plus the pool
// of goroutines that claims and runs jobs. Executors return typed errors so
// the pool can tell a vanished file (fail fast) from a transient I/O error
// (retry).
package worker
