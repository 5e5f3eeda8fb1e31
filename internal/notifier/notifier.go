// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package notifier declares the external notification surface the output
// monitor and parent-wake scheduler push through. The chat/email
// transports themselves are out of scope for this daemon; callers wire
// in a real Notifier, or fall back to LogNotifier for local use.
package notifier

import "context"

// Event is something worth telling an operator about.
type Event struct {
	SessionID string
	Kind      string // e.g. "permission_prompt", "parent_wake", "error"
	Message   string
}

// Notifier delivers events to an external channel and can open a thread
// (chat conversation, email subject) bound to a session.
type Notifier interface {
	Send(ctx context.Context, event Event) error
	OpenThread(ctx context.Context, sessionID string) (threadID string, err error)
}
