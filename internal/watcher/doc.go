// Package watcher bridges fsnotify events to scanner passes, with per
// directory debouncing so bursts of writes coalesce into single scans.
package watcher
