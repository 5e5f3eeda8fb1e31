// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pane is the thin, testable surface over a terminal multiplexer
// that the session registry, output monitor, and message queue drive
// agents through. It is treated as a collaborator by the rest of the
// core: callers depend on the Controller interface, never on the
// concrete tmux implementation.
package pane

import "context"

// Controller is the multiplexer surface the core depends on.
type Controller interface {
	// Exists reports whether a pane with the given name is alive.
	Exists(ctx context.Context, name string) bool

	// CreateWithCommand creates a new pane running command in workdir.
	CreateWithCommand(ctx context.Context, name, workdir string, command []string) error

	// SendText pastes text into the pane (paste-buffer semantics — safe
	// for arbitrary content including newlines and unicode).
	SendText(ctx context.Context, name, text string) error

	// SendKey sends a single named key (e.g. "Escape", "Enter") to the pane.
	SendKey(ctx context.Context, name, key string) error

	// Capture returns the visible pane content (not full scrollback).
	Capture(ctx context.Context, name string) ([]byte, error)

	// Kill terminates the pane.
	Kill(ctx context.Context, name string) error

	// List returns the names of all panes currently known to the multiplexer.
	List(ctx context.Context) ([]string, error)

	// OpenInTerminal brings the pane into the user's foreground terminal.
	// Best-effort: the core continues regardless of error.
	OpenInTerminal(ctx context.Context, name string) error
}
