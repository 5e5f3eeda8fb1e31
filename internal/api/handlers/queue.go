// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fleetctl/sm/internal/arbiter"
	"github.com/fleetctl/sm/internal/queue"
)

// QueueHandler serves cache-invalidation requests against the delivery
// arbiter and message queue.
type QueueHandler struct {
	arbiter *arbiter.Arbiter
	queue   *queue.Queue
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(arb *arbiter.Arbiter, q *queue.Queue) *QueueHandler {
	return &QueueHandler{arbiter: arb, queue: q}
}

// invalidateCacheRequest is the POST /sessions/{id}/invalidate-cache body.
// arm_skip may also arrive as a query parameter; the body takes
// precedence when both are present.
type invalidateCacheRequest struct {
	ArmSkip bool `json:"arm_skip"`
}

// InvalidateCache fences a pending stop notification and cancels any
// undelivered context-monitor messages sent by the session.
func (h *QueueHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	armSkip := r.URL.Query().Get("arm_skip") == "true"
	var req invalidateCacheRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			armSkip = req.ArmSkip
		}
	}

	h.arbiter.Invalidate(id, armSkip)

	cancelled, err := h.queue.CancelContextMonitorMessagesFrom(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "invalidated",
		"cancelled": cancelled,
	})
}
