// Command lvmaint provides offline maintenance for the catalog database.
//
// It supports the following operations:
//   - prune:   Delete content records that no live file references. These
//     accumulate when files are deleted and never come back; they are kept
//     by default so returning files reuse their hashes and thumbnails.
//   - vacuum:  Compact the database file after pruning.
//   - recover: Reset jobs stuck in the running state, for a database left
//     behind by a crashed engine. The engine does this itself at startup.
//   - status:  Print catalog and job queue counts.
//
// Usage:
//
//	lvmaint <command>
//
// Environment:
//
//	DATA_DIR - Path to data directory (default: /data)
//
// Run lvmaint against a stopped engine; it opens the same database file.
package main
