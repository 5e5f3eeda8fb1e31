// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetctl/sm/internal/arbiter"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
	"github.com/fleetctl/sm/internal/queue"
)

func TestQueueHandler_InvalidateCache_ArmsSkipAndCancels(t *testing.T) {
	fc := pane.NewFakeController()
	lookup := &fakeSessionLookup{panes: map[string]string{"T": "pane-t"}}
	q, err := queue.New(filepath.Join(t.TempDir(), "queue.db"), fc, provider.NewRegistry(), lookup, queue.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	_, err = q.Enqueue(context.Background(), "T", "ctx warning", queue.ModeImportant, queue.EnqueueOptions{
		SenderSessionID: "sender-1",
		MessageCategory: queue.ContextMonitorCategory,
	})
	require.NoError(t, err)

	arb := arbiter.New(nil, nil)
	arb.ArmSender("sender-1", "x", "y")

	h := NewQueueHandler(arb, q)

	req := httptest.NewRequest(http.MethodPost, "/sessions/sender-1/invalidate-cache?arm_skip=true", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "sender-1"})
	rec := httptest.NewRecorder()
	h.InvalidateCache(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, _, armed := arb.ArmedSender("sender-1")
	assert.False(t, armed)
	assert.Equal(t, 1, arb.SkipCount("sender-1"))

	n, err := q.GetQueueLength(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

type fakeSessionLookup struct {
	panes map[string]string
}

func (f *fakeSessionLookup) PaneName(id string) (string, bool) {
	p, ok := f.panes[id]
	return p, ok
}

func (f *fakeSessionLookup) SessionProvider(id string) (string, bool) {
	return "claude", true
}
