// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetctl/sm/internal/events"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/store"
)

func newTestBus() *events.MemoryEventBus {
	return events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
}

func newTestRegistry(t *testing.T) (*Registry, *pane.FakeController) {
	t.Helper()
	fc := pane.NewFakeController()
	st := store.New[Session](filepath.Join(t.TempDir(), "state.json"))
	bus := newTestBus()
	t.Cleanup(func() { bus.Close() })
	return New(fc, st, bus), fc
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg, fc := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, CreateParams{Name: "alpha", WorkingDir: "/tmp", Provider: ProviderClaude})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusRunning, s.Status)
	assert.True(t, fc.Exists(ctx, "alpha"))

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.ID, got.ID)

	byName, ok := reg.GetByName("alpha")
	require.True(t, ok)
	assert.Equal(t, s.ID, byName.ID)
}

func TestRegistry_ListExcludesStoppedByDefault(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, CreateParams{Name: "alpha", WorkingDir: "/tmp"})
	require.NoError(t, err)
	require.NoError(t, reg.Kill(ctx, s.ID))

	assert.Empty(t, reg.List(false))
	assert.Len(t, reg.List(true), 1)
}

func TestRegistry_KillRetainsRecord(t *testing.T) {
	reg, fc := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, CreateParams{Name: "alpha", WorkingDir: "/tmp"})
	require.NoError(t, err)

	require.NoError(t, reg.Kill(ctx, s.ID))

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, StatusStopped, got.Status)
	assert.False(t, fc.Exists(ctx, "alpha"))
}

func TestRegistry_SpawnChildInheritsWorkingDir(t *testing.T) {
	reg, fc := newTestRegistry(t)
	ctx := context.Background()

	parent, err := reg.Create(ctx, CreateParams{Name: "parent", WorkingDir: "/repo", Provider: ProviderClaude})
	require.NoError(t, err)

	child, err := reg.SpawnChild(ctx, parent.ID, "do the thing", "", "child", nil)
	require.NoError(t, err)

	assert.Equal(t, "/repo", child.WorkingDir)
	assert.Equal(t, parent.ID, child.ParentSessionID)
	assert.NotNil(t, child.SpawnedAt)
	assert.Equal(t, []string{"do the thing"}, fc.SentText("child"))
}

func TestRegistry_SpawnChildMissingParent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.SpawnChild(context.Background(), "nonexistent", "hi", "", "child", nil)
	assert.Error(t, err)
}

func TestRegistry_SendInputBypassQueue(t *testing.T) {
	reg, fc := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, CreateParams{Name: "alpha", WorkingDir: "/tmp"})
	require.NoError(t, err)

	result, err := reg.SendInput(ctx, s.ID, "hello", true)
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, result)
	assert.Equal(t, []string{"hello"}, fc.SentText("alpha"))
}

func TestRegistry_SendInputUnknownSessionFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	result, err := reg.SendInput(context.Background(), "missing", "hello", true)
	assert.Error(t, err)
	assert.Equal(t, DeliveryFailed, result)
}

type fakeQueuer struct {
	calls []string
}

func (f *fakeQueuer) QueueMessage(ctx context.Context, targetID, text, mode string) error {
	f.calls = append(f.calls, targetID+":"+text+":"+mode)
	return nil
}

func TestRegistry_SendInputQueuesWhenNotBypassed(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, CreateParams{Name: "alpha", WorkingDir: "/tmp"})
	require.NoError(t, err)

	fq := &fakeQueuer{}
	reg.SetQueuer(fq)

	result, err := reg.SendInput(ctx, s.ID, "hello", false)
	require.NoError(t, err)
	assert.Equal(t, DeliveryQueued, result)
	assert.Equal(t, []string{s.ID + ":hello:sequential"}, fq.calls)
}

func TestRegistry_ReconcileDropsDeadPanes(t *testing.T) {
	fc := pane.NewFakeController()
	st := store.New[Session](filepath.Join(t.TempDir(), "state.json"))

	live := Session{ID: "aaa11111", Name: "live", PaneName: "live", Status: StatusRunning, CreatedAt: time.Now()}
	dead := Session{ID: "bbb22222", Name: "dead", PaneName: "dead", Status: StatusRunning, CreatedAt: time.Now()}
	require.NoError(t, st.Save([]Session{live, dead}))

	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "live", "/tmp", nil))

	reg := New(fc, st, nil)
	require.NoError(t, reg.Reconcile(ctx))

	_, ok := reg.Get("aaa11111")
	assert.True(t, ok)
	_, ok = reg.Get("bbb22222")
	assert.False(t, ok)
}

func TestRegistry_ReconcileIsIdempotentAndSilent(t *testing.T) {
	fc := pane.NewFakeController()
	st := store.New[Session](filepath.Join(t.TempDir(), "state.json"))
	bus := newTestBus()
	defer bus.Close()

	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "live", "/tmp", nil))
	require.NoError(t, st.Save([]Session{{ID: "aaa11111", Name: "live", PaneName: "live", Status: StatusRunning}}))

	reg := New(fc, st, bus)
	require.NoError(t, reg.Reconcile(ctx))
	require.NoError(t, reg.Reconcile(ctx))

	history, err := bus.History(events.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}
