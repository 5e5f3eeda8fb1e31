// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package arbiter implements the stop-notify skip-count arbiter: it
// routes "agent finished its turn" notifications to whichever sender is
// currently armed for a target, while absorbing idle events produced by
// administrative actions (context clear, cache invalidation) that would
// otherwise look identical to a genuine turn completion.
package arbiter

import "sync"

// ParentWakeCanceler is the slice of internal/queue.Queue the arbiter
// calls when a stop hook fires, since a genuinely idle child no longer
// needs its parent-wake digest.
type ParentWakeCanceler interface {
	CancelParentWake(childID string)
}

// StopNotifier delivers the "target went idle" notification to whichever
// sender was armed.
type StopNotifier interface {
	NotifyStop(targetID, senderID, senderName string)
}

type targetState struct {
	senderID   string
	senderName string
	skipCount  int
}

// Arbiter holds per-target stop-notify state.
type Arbiter struct {
	mu      sync.Mutex
	targets map[string]*targetState

	wake   ParentWakeCanceler
	notify StopNotifier
}

// New creates an Arbiter. wake and notify may be nil in tests that only
// exercise skip-count bookkeeping.
func New(wake ParentWakeCanceler, notify StopNotifier) *Arbiter {
	return &Arbiter{
		targets: make(map[string]*targetState),
		wake:    wake,
		notify:  notify,
	}
}

func (a *Arbiter) stateFor(target string) *targetState {
	st, ok := a.targets[target]
	if !ok {
		st = &targetState{}
		a.targets[target] = st
	}
	return st
}

// ArmSender records who should be notified the next time target goes
// idle. It does not touch the skip count.
func (a *Arbiter) ArmSender(target, senderID, senderName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.stateFor(target)
	st.senderID = senderID
	st.senderName = senderName
}

// Invalidate clears the armed sender for target. If armSkip is true, it
// also increments the skip count by one, so one more idle event is
// absorbed rather than treated as a genuine stop. Callers that intend to
// fence a pending stop notification must call this before sending the
// multiplexer input that will trigger it.
func (a *Arbiter) Invalidate(target string, armSkip bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.stateFor(target)
	st.senderID = ""
	st.senderName = ""
	if armSkip {
		st.skipCount++
	}
}

// MarkSessionIdle is called by the output monitor on a verified idle
// transition, and by hook scripts when the agent itself reports "stop".
func (a *Arbiter) MarkSessionIdle(target string, fromStopHook bool) {
	a.mu.Lock()
	st := a.stateFor(target)

	var senderID, senderName string
	notify := false

	switch {
	case st.skipCount > 0:
		st.skipCount--
	case st.senderID != "":
		senderID, senderName = st.senderID, st.senderName
		st.senderID = ""
		st.senderName = ""
		notify = true
	}
	a.mu.Unlock()

	if notify && a.notify != nil {
		a.notify.NotifyStop(target, senderID, senderName)
	}
	if fromStopHook && a.wake != nil {
		a.wake.CancelParentWake(target)
	}
}

// SkipCount returns the current skip count for target (test/inspection helper).
func (a *Arbiter) SkipCount(target string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateFor(target).skipCount
}

// ArmedSender returns the currently armed sender for target, if any.
func (a *Arbiter) ArmedSender(target string) (id, name string, armed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.stateFor(target)
	return st.senderID, st.senderName, st.senderID != ""
}
