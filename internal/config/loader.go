// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file in the current directory. It looks
// for sm.hjson first, then sm.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{"sm.hjson", "sm.json"}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for sm.hjson, sm.json)")
}

// applyDefaults sets default values for missing config fields, matching
// the defaults each owning package falls back to when wired with a zero
// Config (internal/monitor.Config.WithDefaults, internal/queue.Config.WithDefaults,
// internal/wake.Config.WithDefaults, internal/lock's staleThreshold).
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}

	if cfg.State.Path == "" {
		cfg.State.Path = ".sm/sessions.json"
	}

	if cfg.Lock.FileName == "" {
		cfg.Lock.FileName = ".claude/workspace.lock"
	}
	if cfg.Lock.StaleAfter == "" {
		cfg.Lock.StaleAfter = "30m"
	}

	if cfg.Monitor.CaptureInterval == "" {
		cfg.Monitor.CaptureInterval = "1s"
	}
	if cfg.Monitor.IdleCooldown == "" {
		cfg.Monitor.IdleCooldown = "300s"
	}
	if cfg.Monitor.PermissionDebounce == "" {
		cfg.Monitor.PermissionDebounce = "30s"
	}
	if cfg.Monitor.StableWindow == "" {
		cfg.Monitor.StableWindow = "2s"
	}

	if cfg.Queue.DBPath == "" {
		cfg.Queue.DBPath = ".sm/queue.db"
	}
	if cfg.Queue.WorkerPollInterval == "" {
		cfg.Queue.WorkerPollInterval = "5s"
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 8
	}
	if cfg.Queue.BackoffStart == "" {
		cfg.Queue.BackoffStart = "1s"
	}
	if cfg.Queue.BackoffCap == "" {
		cfg.Queue.BackoffCap = "30s"
	}

	if cfg.Wake.PollInterval == "" {
		cfg.Wake.PollInterval = "10s"
	}

	if cfg.Timeouts.TmuxSendText == "" {
		cfg.Timeouts.TmuxSendText = "2s"
	}
	if cfg.Timeouts.TmuxCapture == "" {
		cfg.Timeouts.TmuxCapture = "5s"
	}
	if cfg.Timeouts.GitCommand == "" {
		cfg.Timeouts.GitCommand = "2s"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
