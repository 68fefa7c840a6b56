// Package startup handles environment configuration, directory validation,
// and the structured startup/shutdown logging sequence.
package startup
