package orchestrator

import (
	"context"
	"sync"
	"time"
)

// debouncer coalesces fsnotify's Create/Write/Rename bursts per path into a
// single call after a trailing quiet window, mirroring the teacher's
// pkg/events debounce philosophy (map[key]*time.Timer guarded by a mutex).
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	window time.Duration
	fire   func(ctx context.Context, path string)
}

func newDebouncer(fire func(ctx context.Context, path string), window time.Duration) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		window: window,
		fire:   fire,
	}
}

func (d *debouncer) trigger(ctx context.Context, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(ctx, path)
	})
}

// stopAll cancels every pending timer, e.g. on watcher shutdown.
func (d *debouncer) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}
