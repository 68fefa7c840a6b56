package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of filesystem events per directory. Each Hit
// (re)arms that directory's timer; the callback fires once the directory has
// been quiet for the full window. A copy operation dropping 500 files into
// one directory produces one scan, not 500.
type debouncer struct {
	window time.Duration
	fire   func(dir string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDebouncer(window time.Duration, fire func(dir string)) *debouncer {
	return &debouncer{
		window: window,
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// Hit records activity in dir, resetting its quiet-period timer.
func (d *debouncer) Hit(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[dir]; ok {
		t.Reset(d.window)
		return
	}

	d.timers[dir] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, dir)
		d.mu.Unlock()

		d.fire(dir)
	})
}

// Stop cancels all pending timers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for dir, t := range d.timers {
		t.Stop()
		delete(d.timers, dir)
	}
}
