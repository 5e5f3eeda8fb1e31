// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading, validation, and
// hot-reload for the daemon.
package config

// Config is the root configuration structure.
type Config struct {
	Version  string         `json:"version"`
	Project  ProjectConfig  `json:"project"`
	Server   ServerConfig   `json:"server"`
	State    StateConfig    `json:"state"`
	Lock     LockConfig     `json:"lock"`
	Monitor  MonitorConfig  `json:"monitor"`
	Queue    QueueConfig    `json:"message_queue"`
	Wake     WakeConfig     `json:"parent_wake"`
	Timeouts TimeoutsConfig `json:"timeouts"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name string `json:"name"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
}

// StateConfig locates the persisted session-registry document.
type StateConfig struct {
	Path string `json:"path"`
}

// LockConfig configures the per-workspace advisory lock.
type LockConfig struct {
	FileName   string `json:"file_name"`
	StaleAfter string `json:"stale_after"`
}

// MonitorConfig tunes the OutputMonitor's capture cadence.
type MonitorConfig struct {
	CaptureInterval    string `json:"capture_interval"`
	IdleCooldown       string `json:"idle_cooldown"`
	PermissionDebounce string `json:"permission_debounce"`
	StableWindow       string `json:"stable_window"`
}

// QueueConfig tunes the MessageQueue.
type QueueConfig struct {
	DBPath             string `json:"db_path"`
	WorkerPollInterval string `json:"worker_poll_interval"`
	MaxAttempts        int    `json:"max_attempts"`
	BackoffStart       string `json:"backoff_start"`
	BackoffCap         string `json:"backoff_cap"`
}

// WakeConfig tunes the ParentWakeScheduler.
type WakeConfig struct {
	PollInterval string `json:"poll_interval"`
}

// TimeoutsConfig bounds external subprocess calls.
type TimeoutsConfig struct {
	TmuxSendText string `json:"tmux_send_text"`
	TmuxCapture  string `json:"tmux_capture"`
	GitCommand   string `json:"git_command"`
}

// LoggingConfig configures the daemon's own log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// NotifierConfig configures the external chat/email transport. Left empty,
// the daemon falls back to internal/notifier.LogNotifier.
type NotifierConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig is the out-of-scope chat transport's connection info.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}
