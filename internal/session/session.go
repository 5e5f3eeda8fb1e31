// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session owns the Session record, its lifecycle enum, and the
// SessionRegistry that is the source of truth for every agent pane the
// daemon supervises.
package session

import "time"

// Provider identifies which coding agent a session runs.
type Provider string

const (
	ProviderClaude   Provider = "claude"
	ProviderCodex    Provider = "codex"
	ProviderCodexApp Provider = "codex-app"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusStarting          Status = "starting"
	StatusRunning           Status = "running"
	StatusWaitingInput      Status = "waiting_input"
	StatusWaitingPermission Status = "waiting_permission"
	StatusIdle              Status = "idle"
	StatusStopped           Status = "stopped"
	StatusError             Status = "error"
)

// Session is one supervised agent pane.
type Session struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	PaneName string   `json:"pane_name"`
	Provider Provider `json:"provider"`
	Status   Status   `json:"status"`

	WorkingDir   string `json:"working_dir"`
	GitRemoteURL string `json:"git_remote_url,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	FriendlyName    string `json:"friendly_name,omitempty"`
	CurrentTask     string `json:"current_task,omitempty"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	SpawnPrompt     string `json:"spawn_prompt,omitempty"`

	SpawnedAt *time.Time `json:"spawned_at,omitempty"`

	// Thread bindings for the external notifier.
	ChatID        string `json:"chat_id,omitempty"`
	RootMessageID string `json:"root_message_id,omitempty"`
	TopicID       string `json:"topic_id,omitempty"`

	// Provider-specific fields.
	TranscriptPath string `json:"transcript_path,omitempty"`
	CodexThreadID  string `json:"codex_thread_id,omitempty"`

	AgentStatusText string     `json:"agent_status_text,omitempty"`
	AgentStatusAt   *time.Time `json:"agent_status_at,omitempty"`
}

// IsLive reports whether the session represents a pane that should still
// be running, as opposed to one explicitly killed.
func (s Session) IsLive() bool {
	return s.Status != StatusStopped
}

// DeliveryResult is the outcome of SendInput.
type DeliveryResult string

const (
	DeliveryDelivered DeliveryResult = "DELIVERED"
	DeliveryQueued    DeliveryResult = "QUEUED"
	DeliveryFailed    DeliveryResult = "FAILED"
)
