// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyStop(targetID, senderID, senderName string) {
	n.calls = append(n.calls, targetID+":"+senderID+":"+senderName)
}

type recordingWake struct {
	cancelled []string
}

func (w *recordingWake) CancelParentWake(childID string) {
	w.cancelled = append(w.cancelled, childID)
}

// Scenario 1 from spec's literal end-to-end scenarios: race absorption.
func TestArbiter_RaceAbsorption(t *testing.T) {
	notify := &recordingNotifier{}
	a := New(nil, notify)

	a.Invalidate("S", true)
	a.ArmSender("S", "em-parent", "em-1615")
	a.MarkSessionIdle("S", false)

	assert.Equal(t, 0, a.SkipCount("S"))
	id, name, armed := a.ArmedSender("S")
	assert.True(t, armed)
	assert.Equal(t, "em-parent", id)
	assert.Equal(t, "em-1615", name)
	assert.Empty(t, notify.calls)

	a.MarkSessionIdle("S", false)
	assert.Equal(t, []string{"S:em-parent:em-1615"}, notify.calls)
	_, _, armed = a.ArmedSender("S")
	assert.False(t, armed)
}

func TestArbiter_InvalidateIsIdempotentAndAdditive(t *testing.T) {
	a := New(nil, nil)
	a.Invalidate("S", true)
	a.Invalidate("S", true)
	assert.Equal(t, 2, a.SkipCount("S"))

	a.MarkSessionIdle("S", false)
	assert.Equal(t, 1, a.SkipCount("S"))
	a.MarkSessionIdle("S", false)
	assert.Equal(t, 0, a.SkipCount("S"))
}

func TestArbiter_InvalidateThenMarkIdleClearsSenderAndRestoresSkipCount(t *testing.T) {
	a := New(nil, nil)
	a.ArmSender("S", "sender-1", "Sender One")

	a.Invalidate("S", true)
	a.MarkSessionIdle("S", false)

	assert.Equal(t, 0, a.SkipCount("S"))
	_, _, armed := a.ArmedSender("S")
	assert.False(t, armed)
}

func TestArbiter_MarkIdleWithNothingArmedIsNoop(t *testing.T) {
	notify := &recordingNotifier{}
	a := New(nil, notify)
	a.MarkSessionIdle("S", false)
	assert.Empty(t, notify.calls)
	assert.Equal(t, 0, a.SkipCount("S"))
}

// Scenario 4: stop-hook cancels parent wake.
func TestArbiter_StopHookCancelsParentWake(t *testing.T) {
	wake := &recordingWake{}
	a := New(wake, nil)

	a.MarkSessionIdle("C", true)

	assert.Equal(t, []string{"C"}, wake.cancelled)
}

func TestArbiter_NonStopHookDoesNotCancelParentWake(t *testing.T) {
	wake := &recordingWake{}
	a := New(wake, nil)

	a.MarkSessionIdle("C", false)

	assert.Empty(t, wake.cancelled)
}

func TestArbiter_SkipCountNeverNegative(t *testing.T) {
	a := New(nil, nil)
	a.MarkSessionIdle("S", false)
	a.MarkSessionIdle("S", false)
	assert.Equal(t, 0, a.SkipCount("S"))
}
