// Package middleware provides HTTP middleware for the engine's API surface.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with id-normalized paths
package middleware
