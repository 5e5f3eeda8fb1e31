// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watchResult struct {
	cfg *Config
	err error
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, `{ version: "1" state: { path: "x.json" } server: { port: 9000 } }`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	var results []watchResult

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx, func(cfg *Config, err error) {
		mu.Lock()
		results = append(results, watchResult{cfg: cfg, err: err})
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte(`{ version: "1" state: { path: "x.json" } server: { port: 9100 } }`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := results[len(results)-1]
	require.NoError(t, last.err)
	assert.Equal(t, 9100, last.cfg.Server.Port)
}

func TestWatcher_InvalidReloadReportsError(t *testing.T) {
	path := writeConfig(t, `{ version: "1" state: { path: "x.json" } }`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	var results []watchResult

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx, func(cfg *Config, err error) {
		mu.Lock()
		results = append(results, watchResult{cfg: cfg, err: err})
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte(`{ version: "" }`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := results[len(results)-1]
	assert.Error(t, last.err)
}

func TestDebouncer_CoalescesRapidCalls(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	var mu sync.Mutex
	calls := 0

	for i := 0; i < 5; i++ {
		d.debounce("key", func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 10*time.Millisecond)
}
