// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 100 * time.Millisecond

// debouncer coalesces repeated fsnotify events for the same file into a
// single reload, the way the teacher debounces binary-change events
// before restarting a service.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timers   map[string]*time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &debouncer{duration: duration, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[key]; exists {
		timer.Stop()
	}

	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}
