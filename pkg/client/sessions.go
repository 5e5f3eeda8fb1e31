// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetctl/sm/internal/session"
)

// SessionClient provides access to session lifecycle and input delivery.
//
// Access through [Client.Sessions].
type SessionClient struct {
	c *Client
}

// List returns every live session, or every session ever created when all
// is true.
func (s *SessionClient) List(ctx context.Context, all bool) ([]session.Session, error) {
	path := "/sessions"
	if all {
		path += "?all=true"
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var sessions []session.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	return sessions, nil
}

// Get returns one session by id.
func (s *SessionClient) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.c.get(ctx, "/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &sess, nil
}

// SendResult is the outcome of a Send call.
type SendResult struct {
	Result session.DeliveryResult `json:"result"`
	Error  string                 `json:"error,omitempty"`
}

// Send delivers text to a session's pane directly when bypassQueue is
// true; otherwise the daemon enqueues it on the message queue.
func (s *SessionClient) Send(ctx context.Context, id, text string, bypassQueue bool) (*SendResult, error) {
	data, err := s.c.postJSON(ctx, "/sessions/"+id+"/send", map[string]interface{}{
		"text":         text,
		"bypass_queue": bypassQueue,
	})
	if err != nil {
		return nil, err
	}

	var result SendResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse send result: %w", err)
	}
	return &result, nil
}

// Dispatch pushes id's parent-wake digest immediately, bypassing the
// scheduler's poll cadence.
func (s *SessionClient) Dispatch(ctx context.Context, id string) error {
	_, err := s.c.post(ctx, "/sessions/"+id+"/dispatch")
	return err
}

// InvalidateCacheResult is the outcome of an InvalidateCache call.
type InvalidateCacheResult struct {
	Status    string `json:"status"`
	Cancelled int    `json:"cancelled"`
}

// InvalidateCache fences a pending stop notification (armSkip) and cancels
// any undelivered context-monitor messages sent by the session.
func (s *SessionClient) InvalidateCache(ctx context.Context, id string, armSkip bool) (*InvalidateCacheResult, error) {
	path := fmt.Sprintf("/sessions/%s/invalidate-cache", id)
	if armSkip {
		path += "?arm_skip=true"
	}

	data, err := s.c.post(ctx, path)
	if err != nil {
		return nil, err
	}

	var result InvalidateCacheResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse invalidate-cache result: %w", err)
	}
	return &result, nil
}
