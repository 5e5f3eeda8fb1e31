// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateDurations(cfg, errs)
	v.validateQueue(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.Version == "" {
		errs.Add("version", "is required")
	}
	if cfg.State.Path == "" {
		errs.Add("state.path", "is required")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert/tls_key", "both must be set to enable TLS, or neither")
	}
}

func (v *Validator) validateQueue(cfg *Config, errs *ValidationError) {
	if cfg.Queue.MaxAttempts < 0 {
		errs.Add("message_queue.max_attempts", "must be >= 0")
	}
}

// durationFields lists every config field expressed as a parseable
// duration string, so validateDurations can check them uniformly.
func (v *Validator) durationFields(cfg *Config) map[string]string {
	return map[string]string{
		"lock.stale_after":               cfg.Lock.StaleAfter,
		"monitor.capture_interval":       cfg.Monitor.CaptureInterval,
		"monitor.idle_cooldown":          cfg.Monitor.IdleCooldown,
		"monitor.permission_debounce":    cfg.Monitor.PermissionDebounce,
		"monitor.stable_window":          cfg.Monitor.StableWindow,
		"message_queue.worker_poll_interval": cfg.Queue.WorkerPollInterval,
		"message_queue.backoff_start":    cfg.Queue.BackoffStart,
		"message_queue.backoff_cap":      cfg.Queue.BackoffCap,
		"parent_wake.poll_interval":      cfg.Wake.PollInterval,
		"timeouts.tmux_send_text":        cfg.Timeouts.TmuxSendText,
		"timeouts.tmux_capture":          cfg.Timeouts.TmuxCapture,
		"timeouts.git_command":           cfg.Timeouts.GitCommand,
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	for field, value := range v.durationFields(cfg) {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration %q: %v", value, err))
		}
	}
}
