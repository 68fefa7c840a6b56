// Package scanner walks tracked directories and reconciles the catalog with
// what is actually on disk.
package scanner
