// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetctl/sm/internal/health"
)

// HealthClient provides access to the daemon's health report.
//
// Access through [Client.Health].
type HealthClient struct {
	c *Client
}

// Simple returns the flat GET /health body.
func (h *HealthClient) Simple(ctx context.Context) (map[string]string, error) {
	data, err := h.c.get(ctx, "/health")
	if err != nil {
		return nil, err
	}

	var status map[string]string
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse health status: %w", err)
	}
	return status, nil
}

// Detailed returns the structured per-subsystem health report.
func (h *HealthClient) Detailed(ctx context.Context) (*health.Report, error) {
	data, err := h.c.get(ctx, "/health/detailed")
	if err != nil {
		return nil, err
	}

	var report health.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse health report: %w", err)
	}
	return &report, nil
}
