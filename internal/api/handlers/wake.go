// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fleetctl/sm/internal/wake"
)

// WakeHandler serves the manual parent-wake digest trigger behind "sm
// dispatch" — spec.md's §4.8 endpoint list never gives the digest
// mechanism in §4.6 an HTTP binding, so this is a documented supplement
// alongside /sessions/{id}/send.
type WakeHandler struct {
	scheduler *wake.Scheduler
}

// NewWakeHandler creates a new wake handler.
func NewWakeHandler(scheduler *wake.Scheduler) *WakeHandler {
	return &WakeHandler{scheduler: scheduler}
}

// Dispatch immediately sends the session's parent-wake digest, bypassing
// the scheduler's poll cadence.
func (h *WakeHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.scheduler.DispatchNow(r.Context(), id); err != nil {
		if errors.Is(err, wake.ErrNoRegistration) {
			WriteError(w, http.StatusNotFound, ErrNotFound, "no active parent-wake registration for session")
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "dispatched"})
}
