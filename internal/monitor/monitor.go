// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package monitor runs one cooperative capture loop per live session,
// classifying its pane's trailing output into a lifecycle state and
// driving the registry's status plus the delivery arbiter and notifier
// off the transitions.
package monitor

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/fleetctl/sm/internal/logx"
	"github.com/fleetctl/sm/internal/notifier"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
	"github.com/fleetctl/sm/internal/session"
)

// Config holds the monitor's tunable cadences, each falling back to its
// default when the loaded config leaves it at the zero value.
type Config struct {
	CaptureInterval    time.Duration
	IdleCooldown       time.Duration
	PermissionDebounce time.Duration
	StableWindow       time.Duration
}

// WithDefaults fills zero fields with spec defaults.
func (c Config) WithDefaults() Config {
	if c.CaptureInterval <= 0 {
		c.CaptureInterval = time.Second
	}
	if c.IdleCooldown <= 0 {
		c.IdleCooldown = 300 * time.Second
	}
	if c.PermissionDebounce <= 0 {
		c.PermissionDebounce = 30 * time.Second
	}
	if c.StableWindow <= 0 {
		c.StableWindow = 2 * time.Second
	}
	return c
}

// Arbiter is the slice of internal/arbiter.Arbiter the monitor drives.
type Arbiter interface {
	MarkSessionIdle(sessionID string, fromStopHook bool)
}

// IdleSink is the slice of internal/queue.Queue the monitor drives: the
// queue's own is_idle flag (distinct from the arbiter's stop-notify
// sender state) gates sequential/important delivery.
type IdleSink interface {
	SetIdle(target string, idle bool)
}

// SessionSource is the slice of internal/session.Registry the monitor reads
// and writes.
type SessionSource interface {
	List(includeStopped bool) []session.Session
	UpdateStatus(ctx context.Context, id string, status session.Status) error
}

// state is the monitor's per-session tracked capture history.
type state struct {
	lastCapture      []byte
	lastChangeAt     time.Time
	enteredWaitingAt time.Time
	lastPermissionAt time.Time
	status           session.Status
}

// Manager runs and tracks per-session capture loops.
type Manager struct {
	cfg       Config
	pane      pane.Controller
	sessions  SessionSource
	providers *provider.Registry
	arbiter   Arbiter
	notify    notifier.Notifier
	idleSink  IdleSink

	mu      sync.Mutex
	states  map[string]*state
	cancels map[string]context.CancelFunc

	log func(format string, args ...interface{})
}

// New creates an OutputMonitor manager.
func New(cfg Config, paneCtl pane.Controller, sessions SessionSource, providers *provider.Registry, arbiter Arbiter, notify notifier.Notifier) *Manager {
	return &Manager{
		cfg:       cfg.WithDefaults(),
		pane:      paneCtl,
		sessions:  sessions,
		providers: providers,
		arbiter:   arbiter,
		notify:    notify,
		states:    make(map[string]*state),
		cancels:   make(map[string]context.CancelFunc),
		log:       logx.Session("monitor"),
	}
}

// SetIdleSink wires the message queue's idle flag in after construction,
// mirroring Registry.SetQueuer's late-binding to avoid an init-order cycle.
func (m *Manager) SetIdleSink(sink IdleSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleSink = sink
}

// Reconcile starts a capture loop for every live session not already
// watched, and stops loops for sessions that are no longer live. Safe to
// call repeatedly (e.g. on a ticker, or in response to registry events).
func (m *Manager) Reconcile(ctx context.Context) {
	live := m.sessions.List(false)
	liveIDs := make(map[string]struct{}, len(live))

	for _, s := range live {
		liveIDs[s.ID] = struct{}{}
		m.ensureWatching(ctx, s)
	}

	m.mu.Lock()
	for id, cancel := range m.cancels {
		if _, ok := liveIDs[id]; !ok {
			cancel()
			delete(m.cancels, id)
			delete(m.states, id)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) ensureWatching(ctx context.Context, s session.Session) {
	m.mu.Lock()
	if _, ok := m.cancels[s.ID]; ok {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancels[s.ID] = cancel
	m.states[s.ID] = &state{status: s.Status}
	m.mu.Unlock()

	go m.run(loopCtx, s)
}

// TaskCount returns the number of capture loops currently running, for
// health reporting.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// Stop cancels every running capture loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
		delete(m.states, id)
	}
}

func (m *Manager) run(ctx context.Context, s session.Session) {
	ticker := time.NewTicker(m.cfg.CaptureInterval)
	defer ticker.Stop()

	det, ok := m.providers.Get(string(s.Provider))
	if !ok {
		m.log("no provider registered for %s (session %s); monitor idle", s.Provider, s.ID)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, s.ID, s.PaneName, det)
		}
	}
}

func (m *Manager) tick(ctx context.Context, sessionID, paneName string, det provider.Provider) {
	capture, err := m.pane.Capture(ctx, paneName)
	if err != nil {
		m.log("capture %s failed: %v", sessionID, err)
		return
	}

	m.mu.Lock()
	st, ok := m.states[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	changed := !bytes.Equal(capture, st.lastCapture)
	if changed {
		st.lastCapture = capture
		st.lastChangeAt = now
	}

	classification := det.DetectIdle(capture)
	newStatus := m.classify(classification, st, now)
	prevStatus := st.status
	st.status = newStatus
	notifyPermission := false
	if classification == provider.StateWaitingPermission && now.Sub(st.lastPermissionAt) >= m.cfg.PermissionDebounce {
		st.lastPermissionAt = now
		notifyPermission = true
	}
	m.mu.Unlock()

	if newStatus != prevStatus {
		if err := m.sessions.UpdateStatus(ctx, sessionID, newStatus); err != nil {
			m.log("update status %s -> %s: %v", sessionID, newStatus, err)
		}
		if newStatus == session.StatusWaitingInput {
			m.arbiter.MarkSessionIdle(sessionID, false)
		}
		if m.idleSink != nil {
			switch newStatus {
			case session.StatusWaitingInput, session.StatusIdle:
				m.idleSink.SetIdle(sessionID, true)
			case session.StatusRunning:
				m.idleSink.SetIdle(sessionID, false)
			}
		}
	}

	if notifyPermission && m.notify != nil {
		_ = m.notify.Send(ctx, notifier.Event{
			SessionID: sessionID,
			Kind:      "permission_prompt",
			Message:   "agent is waiting for permission",
		})
	}
}

func (m *Manager) classify(c provider.State, st *state, now time.Time) session.Status {
	switch c {
	case provider.StateError:
		return session.StatusError
	case provider.StateWaitingPermission:
		return session.StatusWaitingPermission
	case provider.StateWaitingInput:
		if now.Sub(st.lastChangeAt) < m.cfg.StableWindow {
			return session.StatusRunning
		}
		if st.enteredWaitingAt.IsZero() {
			st.enteredWaitingAt = now
		}
		if now.Sub(st.enteredWaitingAt) > m.cfg.IdleCooldown {
			return session.StatusIdle
		}
		return session.StatusWaitingInput
	default:
		st.enteredWaitingAt = time.Time{}
		return session.StatusRunning
	}
}
