// Package status aggregates catalog and queue counts into the snapshot
// served on /api/status.
package status
