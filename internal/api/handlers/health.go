// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/fleetctl/sm/internal/health"
)

// HealthHandler serves the liveness and detailed health endpoints.
type HealthHandler struct {
	builder *health.Builder
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(builder *health.Builder) *HealthHandler {
	return &HealthHandler{builder: builder}
}

// Simple returns the minimal {"status":"healthy"} liveness response.
func (h *HealthHandler) Simple(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.builder.Simple())
}

// Detailed returns the full health report.
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.builder.Detailed(r.Context()))
}
