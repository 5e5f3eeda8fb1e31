// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultWakePeriodSeconds = 600

// RegisterParentWake creates or replaces child's active wake registration.
func (q *Queue) RegisterParentWake(ctx context.Context, child, parentID string, periodSeconds int) error {
	if periodSeconds <= 0 {
		periodSeconds = defaultWakePeriodSeconds
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO parent_wake_registrations
			(child_session_id, parent_session_id, period_seconds, registered_at, is_active, escalated)
		VALUES (?, ?, ?, ?, 1, 0)
		ON CONFLICT(child_session_id) DO UPDATE SET
			parent_session_id = excluded.parent_session_id,
			period_seconds = excluded.period_seconds,
			registered_at = excluded.registered_at,
			last_wake_at = NULL,
			last_status_at_prev_wake = NULL,
			escalated = 0,
			is_active = 1`,
		child, parentID, periodSeconds, now)
	if err != nil {
		return fmt.Errorf("register parent wake: %w", err)
	}
	return nil
}

// CancelParentWake marks child's registration inactive. It satisfies
// internal/arbiter.ParentWakeCanceler (no error return — failures are
// logged, matching a stop hook's fire-and-forget call site).
func (q *Queue) CancelParentWake(childID string) {
	ctx := context.Background()
	if _, err := q.db.ExecContext(ctx, `UPDATE parent_wake_registrations SET is_active = 0 WHERE child_session_id = ?`, childID); err != nil {
		q.log("cancel parent wake for %s: %v", childID, err)
	}
}

// GetRegistration returns child's active wake registration, if any.
func (q *Queue) GetRegistration(ctx context.Context, childID string) (ParentWakeRegistration, bool, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, child_session_id, parent_session_id, period_seconds, registered_at,
		       last_wake_at, last_status_at_prev_wake, escalated, is_active
		FROM parent_wake_registrations
		WHERE child_session_id = ? AND is_active = 1`, childID)
	if err != nil {
		return ParentWakeRegistration{}, false, fmt.Errorf("query registration: %w", err)
	}
	defer rows.Close()

	regs, err := scanRegistrations(rows)
	if err != nil {
		return ParentWakeRegistration{}, false, err
	}
	if len(regs) == 0 {
		return ParentWakeRegistration{}, false, nil
	}
	return regs[0], true, nil
}

// DueWakes returns active registrations whose next wake is due.
func (q *Queue) DueWakes(ctx context.Context, now time.Time) ([]ParentWakeRegistration, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, child_session_id, parent_session_id, period_seconds, registered_at,
		       last_wake_at, last_status_at_prev_wake, escalated, is_active
		FROM parent_wake_registrations
		WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	regs, err := scanRegistrations(rows)
	if err != nil {
		return nil, err
	}

	var due []ParentWakeRegistration
	for _, r := range regs {
		last := r.RegisteredAt
		if r.LastWakeAt != nil {
			last = *r.LastWakeAt
		}
		if !last.Add(time.Duration(r.PeriodSeconds) * time.Second).After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

// RecordWake updates a registration after its digest has been sent,
// applying the escalation rules: if agent_status_at hasn't advanced
// since the previous wake, escalate to a 300s period; the first time it
// does advance, revert to 600s.
func (q *Queue) RecordWake(ctx context.Context, reg ParentWakeRegistration, now time.Time, statusAt *time.Time, noProgress bool) error {
	escalated := reg.Escalated
	period := reg.PeriodSeconds
	if noProgress {
		escalated = true
		period = 300
	} else if escalated {
		escalated = false
		period = defaultWakePeriodSeconds
	}

	var statusAtStr interface{}
	if statusAt != nil {
		statusAtStr = statusAt.Format(time.RFC3339Nano)
	}

	_, err := q.db.ExecContext(ctx, `
		UPDATE parent_wake_registrations
		SET last_wake_at = ?, last_status_at_prev_wake = ?, escalated = ?, period_seconds = ?
		WHERE id = ?`,
		now.UTC().Format(time.RFC3339Nano), statusAtStr, boolToInt(escalated), period, reg.ID)
	if err != nil {
		return fmt.Errorf("record wake: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanRegistrations(rows *sql.Rows) ([]ParentWakeRegistration, error) {
	var out []ParentWakeRegistration
	for rows.Next() {
		var (
			r                                ParentWakeRegistration
			registeredAt                     string
			lastWakeAt, lastStatusAtPrevWake sql.NullString
			escalated, isActive              int
		)
		if err := rows.Scan(&r.ID, &r.ChildSessionID, &r.ParentSessionID, &r.PeriodSeconds, &registeredAt,
			&lastWakeAt, &lastStatusAtPrevWake, &escalated, &isActive); err != nil {
			return nil, fmt.Errorf("scan registration row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, registeredAt); err == nil {
			r.RegisteredAt = t
		}
		if lastWakeAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, lastWakeAt.String); err == nil {
				r.LastWakeAt = &t
			}
		}
		if lastStatusAtPrevWake.Valid {
			if t, err := time.Parse(time.RFC3339Nano, lastStatusAtPrevWake.String); err == nil {
				r.LastStatusAtPrevWake = &t
			}
		}
		r.Escalated = escalated != 0
		r.IsActive = isActive != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
