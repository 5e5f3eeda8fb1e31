// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus the daemon uses to broadcast
// session/queue/wake lifecycle changes to the diagnostic WebSocket stream
// and any in-process subscribers.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Scope     string                 `json:"scope,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Scope string    // Filter by scope
	Since time.Time // Events after this time
	Until time.Time // Events before this time
	Limit int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultScope sets the scope tag applied to events that don't set one.
	SetDefaultScope(scope string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event type constants, one family per daemon component.
const (
	// Session lifecycle.
	EventSessionCreated       = "session.created"
	EventSessionStatusChanged = "session.status_changed"
	EventSessionKilled        = "session.killed"
	EventSessionSpawned       = "session.spawned"

	// Message queue.
	EventQueueEnqueued  = "queue.enqueued"
	EventQueueDelivered = "queue.delivered"
	EventQueueFailed    = "queue.failed"

	// Delivery arbiter / parent-wake notifications surfaced to an operator.
	EventNotifyDone    = "notify.done"    // Task completed
	EventNotifyBlocked = "notify.blocked" // Waiting for user input
	EventNotifyError   = "notify.error"   // Something failed

	// Parent-wake scheduler.
	EventWakeDigestSent = "wake.digest_sent"
	EventWakeEscalated  = "wake.escalated"
)
