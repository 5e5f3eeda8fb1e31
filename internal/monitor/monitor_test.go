// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetctl/sm/internal/notifier"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
	"github.com/fleetctl/sm/internal/session"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions []session.Session
	updates  []session.Status
}

func (f *fakeSessions) List(includeStopped bool) []session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Session(nil), f.sessions...)
}

func (f *fakeSessions) UpdateStatus(ctx context.Context, id string, status session.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, status)
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].Status = status
		}
	}
	return nil
}

func (f *fakeSessions) statusCount(s session.Status) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u == s {
			n++
		}
	}
	return n
}

type fakeArbiter struct {
	mu    sync.Mutex
	marks []string
}

func (a *fakeArbiter) MarkSessionIdle(sessionID string, fromStopHook bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marks = append(a.marks, sessionID)
}

func (a *fakeArbiter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.marks)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *fakeNotifier) Send(ctx context.Context, e notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *fakeNotifier) OpenThread(ctx context.Context, sessionID string) (string, error) {
	return "", nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestManager_TransitionsToWaitingInputAfterStableWindow(t *testing.T) {
	fc := pane.NewFakeController()
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "alpha", "/tmp", nil))
	fc.SetCapture("alpha", []byte("│ > \n"))

	sessions := &fakeSessions{sessions: []session.Session{{ID: "s1", PaneName: "alpha", Provider: session.ProviderClaude, Status: session.StatusRunning}}}
	arb := &fakeArbiter{}

	m := New(Config{CaptureInterval: 10 * time.Millisecond, StableWindow: 30 * time.Millisecond}, fc, sessions, provider.NewRegistry(), arb, nil)
	m.Reconcile(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return sessions.statusCount(session.StatusWaitingInput) > 0
	}, time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, arb.count(), 1)
}

func TestManager_ReconcileStopsDeadSessions(t *testing.T) {
	fc := pane.NewFakeController()
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "alpha", "/tmp", nil))

	sessions := &fakeSessions{sessions: []session.Session{{ID: "s1", PaneName: "alpha", Provider: session.ProviderClaude}}}
	m := New(Config{CaptureInterval: 10 * time.Millisecond}, fc, sessions, provider.NewRegistry(), &fakeArbiter{}, nil)

	m.Reconcile(ctx)
	m.mu.Lock()
	_, watching := m.cancels["s1"]
	m.mu.Unlock()
	assert.True(t, watching)

	sessions.mu.Lock()
	sessions.sessions = nil
	sessions.mu.Unlock()

	m.Reconcile(ctx)
	m.mu.Lock()
	_, stillWatching := m.cancels["s1"]
	m.mu.Unlock()
	assert.False(t, stillWatching)
}

func TestManager_NotifiesOnPermissionPrompt(t *testing.T) {
	fc := pane.NewFakeController()
	ctx := context.Background()
	require.NoError(t, fc.CreateWithCommand(ctx, "alpha", "/tmp", nil))
	fc.SetCapture("alpha", []byte("Do you want to proceed?\n"))

	sessions := &fakeSessions{sessions: []session.Session{{ID: "s1", PaneName: "alpha", Provider: session.ProviderClaude}}}
	notif := &fakeNotifier{}

	m := New(Config{CaptureInterval: 10 * time.Millisecond, PermissionDebounce: 20 * time.Millisecond}, fc, sessions, provider.NewRegistry(), &fakeArbiter{}, notif)
	m.Reconcile(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return notif.count() > 0
	}, time.Second, 5*time.Millisecond)
}
