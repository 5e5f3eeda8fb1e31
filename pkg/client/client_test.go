// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetctl/sm/internal/api/version"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestClient_SendsVersionHeader(t *testing.T) {
	var gotVersion string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get(version.Header)
		writeEnvelope(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	c := New(srv.URL)
	_, err := c.Health.Simple(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.LatestVersion, gotVersion)
}

func TestClient_WithVersion(t *testing.T) {
	var gotVersion string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get(version.Header)
		writeEnvelope(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	c := New(srv.URL, WithVersion("2026-01-17"))
	_, err := c.Health.Simple(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-01-17", gotVersion)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "NOT_FOUND", "message": "session not found"},
		})
	})

	c := New(srv.URL)
	_, err := c.Sessions.Get(context.Background(), "missing")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestSessionClient_Send(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, http.StatusOK, map[string]string{"result": "DELIVERED"})
	})

	c := New(srv.URL)
	result, err := c.Sessions.Send(context.Background(), "sess-1", "continue", true)
	require.NoError(t, err)
	assert.Equal(t, "/sessions/sess-1/send", gotPath)
	assert.Equal(t, "continue", gotBody["text"])
	assert.Equal(t, true, gotBody["bypass_queue"])
	assert.Equal(t, "DELIVERED", string(result.Result))
}

func TestSessionClient_InvalidateCache_ArmSkip(t *testing.T) {
	var gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"status": "invalidated", "cancelled": 2})
	})

	c := New(srv.URL)
	result, err := c.Sessions.InvalidateCache(context.Background(), "sess-1", true)
	require.NoError(t, err)
	assert.Equal(t, "arm_skip=true", gotQuery)
	assert.Equal(t, "invalidated", result.Status)
	assert.Equal(t, 2, result.Cancelled)
}

func TestHealthClient_Detailed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"checks": map[string]interface{}{},
			"resources": map[string]interface{}{
				"active_sessions": 3,
				"total_sessions":  5,
				"monitor_tasks":   3,
			},
			"timestamp": "2026-07-30T00:00:00Z",
		})
	})

	c := New(srv.URL)
	report, err := c.Health.Detailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Resources.ActiveSessions)
	assert.Equal(t, 5, report.Resources.TotalSessions)
}
