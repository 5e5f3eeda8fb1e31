// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import "time"

// DeliveryMode selects how a queued message is gated before delivery.
type DeliveryMode string

const (
	ModeUrgent     DeliveryMode = "urgent"
	ModeSequential DeliveryMode = "sequential"
	ModeImportant  DeliveryMode = "important"
)

// ContextMonitorCategory marks a message as produced by the context-usage
// hook, so it can be bulk-cancelled by sender.
const ContextMonitorCategory = "context_monitor"

// QueuedMessage is one row of the durable message_queue table.
type QueuedMessage struct {
	ID                  int64
	TargetSessionID     string
	Text                string
	DeliveryMode        DeliveryMode
	SenderSessionID     string
	ParentSessionID     string
	MessageCategory     string
	RemindSoftThreshold int
	RemindHardThreshold int
	Attempts            int
	QueuedAt            time.Time
	DeliveredAt         *time.Time
}

// ParentWakeRegistration is one row of the parent_wake_registrations table.
type ParentWakeRegistration struct {
	ID                   int64
	ChildSessionID       string
	ParentSessionID      string
	PeriodSeconds        int
	RegisteredAt         time.Time
	LastWakeAt           *time.Time
	LastStatusAtPrevWake *time.Time
	Escalated            bool
	IsActive             bool
}

// EnqueueOptions are the optional fields accepted by Enqueue.
type EnqueueOptions struct {
	SenderSessionID     string
	ParentSessionID     string
	MessageCategory     string
	RemindSoftThreshold int
	RemindHardThreshold int
}
