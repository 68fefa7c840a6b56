// Package catalog implements the SQLite-backed catalog store: tracked
// directories, file records, deduplicated content records, and the durable
// jobs table.
//
// The store uses WAL mode so readers always see the last committed state
// while the indexer writes. All mutation paths that must be atomic (for
// example inserting a file record together with its hash job) run inside a
// single transaction.
package catalog
