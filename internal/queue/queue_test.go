// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
)

type fakeLookup struct {
	panes     map[string]string
	providers map[string]string
}

func (f *fakeLookup) PaneName(id string) (string, bool) {
	p, ok := f.panes[id]
	return p, ok
}

func (f *fakeLookup) SessionProvider(id string) (string, bool) {
	p, ok := f.providers[id]
	return p, ok
}

func newTestQueue(t *testing.T, lookup SessionLookup, cfg Config) (*Queue, *pane.FakeController) {
	t.Helper()
	fc := pane.NewFakeController()
	q, err := New(filepath.Join(t.TempDir(), "queue.db"), fc, provider.NewRegistry(), lookup, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, fc
}

func TestQueue_UrgentDeliversImmediately(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{"T": "pane-t"}, providers: map[string]string{"T": "claude"}}
	q, fc := newTestQueue(t, lookup, Config{WorkerPollInterval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "pane-t", "/tmp", nil))

	_, err := q.Enqueue(ctx, "T", "hello", ModeUrgent)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fc.SentText("pane-t")) == 1
	}, time.Second, 5*time.Millisecond)

	n, err := q.GetQueueLength(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Scenario 2 from spec's literal end-to-end scenarios: stale-idle defer.
func TestQueue_SequentialDefersWhenPromptNotVisible(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{"T": "pane-t"}, providers: map[string]string{"T": "claude"}}
	q, fc := newTestQueue(t, lookup, Config{WorkerPollInterval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "pane-t", "/tmp", nil))
	fc.SetCapture("pane-t", []byte("still working on it...\n"))

	q.SetIdle("T", true)
	_, err := q.Enqueue(ctx, "T", "hello", ModeSequential)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, fc.SentText("pane-t"))
	n, err := q.GetQueueLength(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_SequentialDeliversWhenIdleAndPromptVisible(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{"T": "pane-t"}, providers: map[string]string{"T": "claude"}}
	q, fc := newTestQueue(t, lookup, Config{WorkerPollInterval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "pane-t", "/tmp", nil))
	fc.SetCapture("pane-t", []byte("│ > \n"))

	q.SetIdle("T", true)
	_, err := q.Enqueue(ctx, "T", "hello", ModeSequential)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fc.SentText("pane-t")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestQueue_ImportantDeliversOnPromptVisibleWithoutPriorIdle(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{"T": "pane-t"}, providers: map[string]string{"T": "claude"}}
	q, fc := newTestQueue(t, lookup, Config{WorkerPollInterval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "pane-t", "/tmp", nil))
	fc.SetCapture("pane-t", []byte("│ > \n"))

	_, err := q.Enqueue(ctx, "T", "important notice", ModeImportant)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(fc.SentText("pane-t")) == 1
	}, time.Second, 5*time.Millisecond)
}

// Scenario 3 from spec's literal end-to-end scenarios: context-reset cancellation.
func TestQueue_CancelContextMonitorMessagesFrom(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{}, providers: map[string]string{}}
	q, _ := newTestQueue(t, lookup, Config{WorkerPollInterval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, "T", "ctx", ModeSequential, EnqueueOptions{SenderSessionID: "A", MessageCategory: ContextMonitorCategory})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(ctx, "T", "plain", ModeSequential, EnqueueOptions{SenderSessionID: "A"})
		require.NoError(t, err)
	}
	_, err := q.Enqueue(ctx, "T", "ctx-b", ModeSequential, EnqueueOptions{SenderSessionID: "B", MessageCategory: ContextMonitorCategory})
	require.NoError(t, err)

	n, err := q.CancelContextMonitorMessagesFrom(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	remaining, err := q.GetPendingMessages(ctx, "T")
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestQueue_ParentWakeRegisterAndCancel(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{}, providers: map[string]string{}}
	q, _ := newTestQueue(t, lookup, Config{WorkerPollInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, q.RegisterParentWake(ctx, "C", "P", 0))

	due, err := q.DueWakes(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 600, due[0].PeriodSeconds)

	q.CancelParentWake("C")
	due, err = q.DueWakes(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestQueue_OnParentWakeDeliveredFiresForSequentialDeliveryWithParent(t *testing.T) {
	lookup := &fakeLookup{panes: map[string]string{"T": "pane-t"}, providers: map[string]string{"T": "claude"}}
	q, fc := newTestQueue(t, lookup, Config{WorkerPollInterval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "pane-t", "/tmp", nil))
	fc.SetCapture("pane-t", []byte("│ > \n"))

	type call struct{ child, parent string }
	calls := make(chan call, 1)
	q.OnParentWakeDelivered(func(child, parent string) {
		calls <- call{child, parent}
	})

	q.SetIdle("T", true)
	_, err := q.Enqueue(ctx, "T", "hi", ModeSequential, EnqueueOptions{ParentSessionID: "P"})
	require.NoError(t, err)

	select {
	case c := <-calls:
		assert.Equal(t, "T", c.child)
		assert.Equal(t, "P", c.parent)
	case <-time.After(time.Second):
		t.Fatal("parent wake callback not invoked")
	}
}
