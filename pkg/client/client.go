// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the sm daemon's local
// HTTP API.
//
// # Getting Started
//
// Create a client pointing to a running daemon:
//
//	c := client.New("http://127.0.0.1:8420")
//
//	sessions, err := c.Sessions.List(ctx, false)
//	result, err := c.Sessions.Send(ctx, sessionID, "continue", false)
//
// # API Versioning
//
// sm uses Stripe-style date-based API versioning, sent via the Sm-Version
// header. By default the client pins to the version it was built against;
// use [WithVersion] to override.
//
// # Error Handling
//
// API errors are returned as *APIError, carrying a machine-readable code
// and a human message:
//
//	s, err := c.Sessions.Get(ctx, "unknown")
//	if err != nil {
//	    if apiErr, ok := err.(*client.APIError); ok {
//	        fmt.Printf("API error: %s - %s\n", apiErr.Code, apiErr.Message)
//	    }
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fleetctl/sm/internal/api/version"
)

// Client is an sm daemon API client, safe for concurrent use.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client

	// Sessions provides access to session lifecycle and input delivery.
	Sessions *SessionClient

	// Health provides access to the daemon's health report.
	Health *HealthClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a client against baseURL (e.g. "http://127.0.0.1:8420"). Any
// trailing slash is removed.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: version.LatestVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Sessions = &SessionClient{c: c}
	c.Health = &HealthClient{c: c}

	return c
}

// WithVersion pins the client to a specific date-based API version.
func WithVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithHTTPClient sets a custom HTTP client, e.g. for TLS or proxy config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout. Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Version returns the API version the client sends.
func (c *Client) Version() string { return c.apiVersion }

// BaseURL returns the daemon's base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// apiResponse mirrors handlers.Response.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError is an error response from the daemon.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(version.Header, c.apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	return apiResp.Data, nil
}
