// Package handlers implements the HTTP API: catalog queries for the
// presentation layer, engine controls (rescan, view context, broken
// thumbnails), tracked-directory management, and health endpoints.
package handlers
