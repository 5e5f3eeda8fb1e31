// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS message_queue (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	target_session_id     TEXT NOT NULL,
	text                  TEXT NOT NULL,
	delivery_mode         TEXT NOT NULL,
	sender_session_id     TEXT,
	parent_session_id     TEXT,
	message_category      TEXT,
	remind_soft_threshold INTEGER,
	remind_hard_threshold INTEGER,
	attempts              INTEGER NOT NULL DEFAULT 0,
	queued_at             TEXT NOT NULL,
	delivered_at          TEXT
);

CREATE INDEX IF NOT EXISTS idx_message_queue_target
	ON message_queue(target_session_id, delivered_at, queued_at);

CREATE TABLE IF NOT EXISTS parent_wake_registrations (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	child_session_id          TEXT NOT NULL UNIQUE,
	parent_session_id         TEXT NOT NULL,
	period_seconds            INTEGER NOT NULL,
	registered_at             TEXT NOT NULL,
	last_wake_at              TEXT,
	last_status_at_prev_wake  TEXT,
	escalated                 INTEGER NOT NULL DEFAULT 0,
	is_active                 INTEGER NOT NULL DEFAULT 1
);
`

// openDB opens the pure-Go SQLite driver with the durability pragmas a
// multi-goroutine writer needs: WAL so readers don't block the writer,
// and a busy timeout so concurrent access backs off instead of failing
// immediately with SQLITE_BUSY.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	return db, nil
}
