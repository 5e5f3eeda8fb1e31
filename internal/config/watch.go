// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file whenever it changes on disk and hands
// the new, validated Config to a callback. Reloads that fail validation
// are logged (by the caller) and the previous Config is left in effect.
type Watcher struct {
	path      string
	loader    *Loader
	validator *Validator
	debouncer *debouncer
	fsWatcher *fsnotify.Watcher

	mu     sync.Mutex
	onLoad func(*Config, error)
}

// NewWatcher creates a Watcher for path. Call Start to begin watching.
func NewWatcher(path string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	return &Watcher{
		path:      path,
		loader:    NewLoader(),
		validator: NewValidator(),
		debouncer: newDebouncer(defaultDebounceDuration),
		fsWatcher: fsWatcher,
	}, nil
}

// Start runs the watch loop until ctx is cancelled, calling onLoad with
// each successfully-reloaded Config (or the error from a failed one).
func (w *Watcher) Start(ctx context.Context, onLoad func(*Config, error)) {
	w.mu.Lock()
	w.onLoad = onLoad
	w.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsWatcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.debouncer.debounce(w.path, func() { w.reload(ctx) })
			case _, ok := <-w.fsWatcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := w.loader.LoadWithDefaults(ctx, w.path)
	if err == nil {
		err = w.validator.Validate(cfg)
	}

	w.mu.Lock()
	cb := w.onLoad
	w.mu.Unlock()
	if cb != nil {
		cb(cfg, err)
	}
}

// Close stops the watch loop and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	w.debouncer.stop()
	return w.fsWatcher.Close()
}
