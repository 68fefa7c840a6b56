// Package metrics defines the Prometheus collectors exposed on /metrics.
// All collectors are registered via promauto at package init.
package metrics
