// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package health assembles the daemon's health report: GET /health's flat
// {status:"healthy"} and GET /health/detailed's structured per-subsystem
// breakdown.
package health

import (
	"context"
	"time"

	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/session"
)

// Status is the overall or per-check health classification.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// checkStatus is the narrower vocabulary individual checks report in.
type checkStatus string

const (
	checkOK      checkStatus = "ok"
	checkWarning checkStatus = "warning"
	checkError   checkStatus = "error"
)

// Check is one subsystem's health entry.
type Check struct {
	Status  checkStatus `json:"status"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Resources summarizes process-wide counts.
type Resources struct {
	ActiveSessions int `json:"active_sessions"`
	TotalSessions  int `json:"total_sessions"`
	MonitorTasks   int `json:"monitor_tasks"`
}

// Report is the GET /health/detailed body.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Resources Resources        `json:"resources"`
	Timestamp string           `json:"timestamp"`
}

// SessionSource is the slice of internal/session.Registry the report needs.
type SessionSource interface {
	List(includeStopped bool) []session.Session
}

// QueueSource reports whether the message queue backing store opened.
type QueueSource interface {
	Ping(ctx context.Context) error
}

// StateFileSource reports the last load outcome for the persisted session
// list, distinguishing "never written yet" from "failed to parse".
type StateFileSource interface {
	LastLoadError() error
	Path() string
}

// MonitorSource reports how many OutputMonitor tasks are currently running.
type MonitorSource interface {
	TaskCount() int
}

// NotifierSource reports whether the external notifier (Telegram, in the
// teacher's domain) has a usable configuration. sm's Notifier is an
// out-of-scope collaborator, so this defaults to "not configured" rather
// than failing the overall report.
type NotifierSource interface {
	Configured() bool
}

// Builder assembles Report from its collaborators.
type Builder struct {
	sessions SessionSource
	queue    QueueSource
	state    StateFileSource
	monitors MonitorSource
	notifier NotifierSource
	paneCtl  pane.Controller
}

// New creates a Builder. notifier may be nil if no external notifier is
// configured — its check then reports a warning, never an error.
func New(sessions SessionSource, queue QueueSource, state StateFileSource, monitors MonitorSource, notifier NotifierSource, paneCtl pane.Controller) *Builder {
	return &Builder{
		sessions: sessions,
		queue:    queue,
		state:    state,
		monitors: monitors,
		notifier: notifier,
		paneCtl:  paneCtl,
	}
}

// Simple returns the flat GET /health body.
func (b *Builder) Simple() map[string]string {
	return map[string]string{"status": string(StatusHealthy)}
}

// Detailed assembles the GET /health/detailed report.
func (b *Builder) Detailed(ctx context.Context) Report {
	checks := map[string]Check{
		"state_file":    b.checkStateFile(),
		"tmux_sessions": b.checkPanes(ctx),
		"message_queue": b.checkQueue(ctx),
		"telegram":      b.checkNotifier(),
		"monitors":      b.checkMonitors(),
	}

	return Report{
		Status:    overall(checks),
		Checks:    checks,
		Resources: b.resources(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (b *Builder) checkStateFile() Check {
	err := b.state.LastLoadError()
	switch {
	case err == nil:
		return Check{Status: checkOK, Message: "fresh start"}
	default:
		return Check{Status: checkError, Message: err.Error(), Details: b.state.Path()}
	}
}

// checkPanes cross-references live sessions against the panes the
// multiplexer actually reports: a session with no pane is an error (the
// agent process is gone but the record survives); a pane with no session
// is a warning (an orphan the registry never reconciled away).
func (b *Builder) checkPanes(ctx context.Context) Check {
	panes, err := b.paneCtl.List(ctx)
	if err != nil {
		return Check{Status: checkError, Message: err.Error()}
	}
	known := make(map[string]bool, len(panes))
	for _, p := range panes {
		known[p] = true
	}

	var missing, orphans int
	live := make(map[string]bool, len(panes))
	for _, s := range b.sessions.List(true) {
		if !s.IsLive() {
			continue
		}
		live[s.PaneName] = true
		if !known[s.PaneName] {
			missing++
		}
	}
	for _, p := range panes {
		if !live[p] {
			orphans++
		}
	}

	switch {
	case missing > 0:
		return Check{Status: checkError, Message: "session pane missing", Details: missing}
	case orphans > 0:
		return Check{Status: checkWarning, Message: "pane with no session record", Details: orphans}
	default:
		return Check{Status: checkOK, Message: "all panes accounted for"}
	}
}

func (b *Builder) checkQueue(ctx context.Context) Check {
	if b.queue == nil {
		return Check{Status: checkWarning, Message: "message queue not configured"}
	}
	if err := b.queue.Ping(ctx); err != nil {
		return Check{Status: checkError, Message: err.Error()}
	}
	return Check{Status: checkOK, Message: "reachable"}
}

func (b *Builder) checkNotifier() Check {
	if b.notifier == nil || !b.notifier.Configured() {
		return Check{Status: checkWarning, Message: "telegram not configured"}
	}
	return Check{Status: checkOK, Message: "configured"}
}

func (b *Builder) checkMonitors() Check {
	return Check{Status: checkOK, Message: "running", Details: b.monitors.TaskCount()}
}

func (b *Builder) resources() Resources {
	all := b.sessions.List(true)
	active := 0
	for _, s := range all {
		if s.IsLive() {
			active++
		}
	}
	return Resources{
		ActiveSessions: active,
		TotalSessions:  len(all),
		MonitorTasks:   b.monitors.TaskCount(),
	}
}

func overall(checks map[string]Check) Status {
	status := StatusHealthy
	for _, c := range checks {
		switch c.Status {
		case checkError:
			return StatusUnhealthy
		case checkWarning:
			status = StatusDegraded
		}
	}
	return status
}
