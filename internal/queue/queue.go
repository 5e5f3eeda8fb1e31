// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package queue is the durable message queue and delivery engine: every
// message to a session pane flows through here, gated by one of three
// delivery modes, retried with backoff on failure, and persisted to
// SQLite so an undelivered message survives a daemon restart.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fleetctl/sm/internal/logx"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
)

// SessionLookup is the slice of internal/session.Registry the queue needs
// to resolve a target id to a pane name and provider tag.
type SessionLookup interface {
	PaneName(id string) (string, bool)
	SessionProvider(id string) (string, bool)
}

// Config tunes the queue's worker cadence and retry policy.
type Config struct {
	WorkerPollInterval time.Duration
	MaxAttempts        int
	BackoffStart       time.Duration
	BackoffCap         time.Duration
}

// WithDefaults fills zero fields with spec defaults.
func (c Config) WithDefaults() Config {
	if c.WorkerPollInterval <= 0 {
		c.WorkerPollInterval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BackoffStart <= 0 {
		c.BackoffStart = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	return c
}

// deliveryState is the volatile, per-target delivery bookkeeping: the
// SessionDeliveryState slice that belongs to the queue rather than the
// arbiter (stop-notify sender routing is the arbiter's own state).
type deliveryState struct {
	isIdle        bool
	lastDeliverAt time.Time
	nextAttemptAt time.Time
}

// Queue is the durable message queue and delivery engine.
type Queue struct {
	db        *sql.DB
	pane      pane.Controller
	providers *provider.Registry
	sessions  SessionLookup
	cfg       Config

	mu      sync.Mutex
	states  map[string]*deliveryState
	workers map[string]context.CancelFunc
	wake    map[string]chan struct{}

	onParentWakeDelivered func(child, parent string)

	log func(format string, args ...interface{})
}

// New opens (or creates) the SQLite-backed queue at dbPath.
func New(dbPath string, paneCtl pane.Controller, providers *provider.Registry, sessions SessionLookup, cfg Config) (*Queue, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &Queue{
		db:        db,
		pane:      paneCtl,
		providers: providers,
		sessions:  sessions,
		cfg:       cfg.WithDefaults(),
		states:    make(map[string]*deliveryState),
		workers:   make(map[string]context.CancelFunc),
		wake:      make(map[string]chan struct{}),
		log:       logx.Session("queue"),
	}, nil
}

// Close stops every per-target worker and releases the database handle.
func (q *Queue) Close() error {
	q.mu.Lock()
	for target, cancel := range q.workers {
		cancel()
		delete(q.workers, target)
		delete(q.wake, target)
	}
	q.mu.Unlock()
	return q.db.Close()
}

// Ping verifies the backing database connection is reachable, for health
// reporting.
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// OnParentWakeDelivered registers a callback invoked whenever a
// sequential/important delivery to child succeeds and the message
// carried parent_session_id — the hook the daemon wires to
// RegisterParentWake.
func (q *Queue) OnParentWakeDelivered(fn func(child, parent string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onParentWakeDelivered = fn
}

func (q *Queue) stateFor(target string) *deliveryState {
	st, ok := q.states[target]
	if !ok {
		st = &deliveryState{}
		q.states[target] = st
	}
	return st
}

// SetIdle records the output monitor's latest idle classification for
// target and wakes its worker so a pending sequential/important message
// can be re-evaluated immediately.
func (q *Queue) SetIdle(target string, idle bool) {
	q.mu.Lock()
	st := q.stateFor(target)
	st.isIdle = idle
	q.mu.Unlock()

	if idle {
		q.signal(target)
	}
}

// Enqueue inserts target's message, starts target's worker if none is
// running, and signals it. Urgent messages go through the same worker:
// they skip the idle and prompt checks, but wait behind any older
// undelivered message to the same target.
func (q *Queue) Enqueue(ctx context.Context, target, text string, mode DeliveryMode, opts ...EnqueueOptions) (QueuedMessage, error) {
	var o EnqueueOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO message_queue
			(target_session_id, text, delivery_mode, sender_session_id, parent_session_id,
			 message_category, remind_soft_threshold, remind_hard_threshold, attempts, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		target, text, string(mode), nullableString(o.SenderSessionID), nullableString(o.ParentSessionID),
		nullableString(o.MessageCategory), o.RemindSoftThreshold, o.RemindHardThreshold, now.Format(time.RFC3339Nano))
	if err != nil {
		return QueuedMessage{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return QueuedMessage{}, fmt.Errorf("read inserted id: %w", err)
	}

	msg := QueuedMessage{
		ID:                  id,
		TargetSessionID:     target,
		Text:                text,
		DeliveryMode:        mode,
		SenderSessionID:     o.SenderSessionID,
		ParentSessionID:     o.ParentSessionID,
		MessageCategory:     o.MessageCategory,
		RemindSoftThreshold: o.RemindSoftThreshold,
		RemindHardThreshold: o.RemindHardThreshold,
		QueuedAt:            now,
	}

	q.ensureWorker(target)
	q.signal(target)

	return msg, nil
}

// QueueMessage satisfies internal/session.Registry's Queuer interface: a
// plain string-typed bridge onto Enqueue for the send_input QUEUED path,
// which doesn't need the richer sender/parent/category options.
func (q *Queue) QueueMessage(ctx context.Context, target, text, mode string) error {
	_, err := q.Enqueue(ctx, target, text, DeliveryMode(mode))
	return err
}

// GetPendingMessages returns target's undelivered messages ordered by
// queued_at ascending.
func (q *Queue) GetPendingMessages(ctx context.Context, target string) ([]QueuedMessage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, target_session_id, text, delivery_mode, sender_session_id, parent_session_id,
		       message_category, remind_soft_threshold, remind_hard_threshold, attempts, queued_at, delivered_at
		FROM message_queue
		WHERE target_session_id = ? AND delivered_at IS NULL
		ORDER BY queued_at ASC`, target)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetQueueLength returns the number of undelivered messages for target.
func (q *Queue) GetQueueLength(ctx context.Context, target string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM message_queue WHERE target_session_id = ? AND delivered_at IS NULL`, target).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// CancelContextMonitorMessagesFrom deletes every undelivered row sent by
// sender with message_category='context_monitor', returning the count
// removed. Because the worker always re-fetches the oldest pending row
// before acting on it, deleting here also cancels any in-flight retry
// backoff for those rows — there is nothing further to stop.
func (q *Queue) CancelContextMonitorMessagesFrom(ctx context.Context, sender string) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM message_queue
		WHERE sender_session_id = ? AND message_category = ? AND delivered_at IS NULL`,
		sender, ContextMonitorCategory)
	if err != nil {
		return 0, fmt.Errorf("cancel context-monitor messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	return int(n), nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanMessages(rows *sql.Rows) ([]QueuedMessage, error) {
	var out []QueuedMessage
	for rows.Next() {
		var (
			m                          QueuedMessage
			mode                       string
			sender, parentID, category sql.NullString
			queuedAt                   string
			deliveredAt                sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.TargetSessionID, &m.Text, &mode, &sender, &parentID,
			&category, &m.RemindSoftThreshold, &m.RemindHardThreshold, &m.Attempts, &queuedAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.DeliveryMode = DeliveryMode(mode)
		m.SenderSessionID = sender.String
		m.ParentSessionID = parentID.String
		m.MessageCategory = category.String
		if t, err := time.Parse(time.RFC3339Nano, queuedAt); err == nil {
			m.QueuedAt = t
		}
		if deliveredAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, deliveredAt.String); err == nil {
				m.DeliveredAt = &t
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
