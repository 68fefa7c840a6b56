// Package workers calculates optimal worker pool sizes based on available
// CPU resources, with support for container CPU limits and environment
// variable overrides.
package workers
