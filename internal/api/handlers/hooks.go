// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fleetctl/sm/internal/queue"
	"github.com/fleetctl/sm/internal/session"
)

// Context-usage warning thresholds, matching the original context monitor
// hook's compaction/warning/critical bands.
const (
	warningThreshold  = 50
	criticalThreshold = 60
)

// HookHandler serves callbacks from provider hook scripts.
type HookHandler struct {
	registry *session.Registry
	queue    *queue.Queue
}

// NewHookHandler creates a new hook handler.
func NewHookHandler(registry *session.Registry, q *queue.Queue) *HookHandler {
	return &HookHandler{registry: registry, queue: q}
}

// contextUsageRequest is the POST /hooks/context-usage body.
type contextUsageRequest struct {
	SessionID      string  `json:"session_id"`
	Event          string  `json:"event,omitempty"`
	UsedPercentage float64 `json:"used_percentage,omitempty"`
	Trigger        string  `json:"trigger,omitempty"`
}

// ContextUsage drives the context-usage hook. A context_reset event
// always cancels any undelivered context-monitor messages sent by the
// session, regardless of whether it was otherwise registered. Compaction
// events and used_percentage crossing a warning/critical band queue a
// notification to the session's parent, tagged so a later reset can
// cancel it before it lands.
func (h *HookHandler) ContextUsage(w http.ResponseWriter, r *http.Request) {
	var req contextUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "session_id is required")
		return
	}

	if req.Event == "context_reset" {
		if _, err := h.queue.CancelContextMonitorMessagesFrom(r.Context(), req.SessionID); err != nil {
			WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "flags_reset"})
		return
	}

	s, ok := h.registry.Get(req.SessionID)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	target := s.ParentSessionID
	if target == "" {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	text, ok := contextUsageMessage(req)
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	_, err := h.queue.Enqueue(r.Context(), target, text, queue.ModeImportant, queue.EnqueueOptions{
		SenderSessionID:     req.SessionID,
		ParentSessionID:     s.ParentSessionID,
		MessageCategory:     queue.ContextMonitorCategory,
		RemindSoftThreshold: warningThreshold,
		RemindHardThreshold: criticalThreshold,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func contextUsageMessage(req contextUsageRequest) (string, bool) {
	switch {
	case req.Event == "compaction":
		return fmt.Sprintf("%s: context compacted (trigger=%s)", req.SessionID, req.Trigger), true
	case req.UsedPercentage >= criticalThreshold:
		return fmt.Sprintf("%s: context usage critical (%.0f%%)", req.SessionID, req.UsedPercentage), true
	case req.UsedPercentage >= warningThreshold:
		return fmt.Sprintf("%s: context usage high (%.0f%%)", req.SessionID, req.UsedPercentage), true
	default:
		return "", false
	}
}
