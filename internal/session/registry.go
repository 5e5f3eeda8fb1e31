// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetctl/sm/internal/events"
	"github.com/fleetctl/sm/internal/logx"
	"github.com/fleetctl/sm/internal/pane"
)

// PersistentStore is the subset of store.Store[Session] the registry needs.
// Declared here (rather than importing internal/store's generic type
// directly into the field) only to keep the dependency explicit; in
// practice callers pass a *store.Store[Session].
type PersistentStore interface {
	Save(sessions []Session) error
	Load() ([]Session, error)
}

// Queuer is the narrow slice of the message queue the registry needs for
// send_input's QUEUED path. internal/queue.Queue satisfies this without
// either package importing the other.
type Queuer interface {
	QueueMessage(ctx context.Context, targetID, text string, mode string) error
}

// CreateParams are the inputs to Create.
type CreateParams struct {
	Name         string
	WorkingDir   string
	GitRemoteURL string
	Provider     Provider
	Model        string
	FriendlyName string
	Command      []string
}

// Registry is the in-memory + persisted source of truth for sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	pane  pane.Controller
	store PersistentStore
	bus   events.EventBus
	queue Queuer

	log func(format string, args ...interface{})
}

// New creates an empty Registry. queue may be nil until the queue is
// wired in by app setup; until then send_input falls back to FAILED for
// the QUEUED path rather than panicking.
func New(paneCtl pane.Controller, store PersistentStore, bus events.EventBus) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		pane:     paneCtl,
		store:    store,
		bus:      bus,
		log:      logx.Session("registry"),
	}
}

// SetQueuer wires the message queue in after construction, breaking the
// session/queue initialization cycle (the queue needs a session lookup,
// the registry needs a queuer).
func (r *Registry) SetQueuer(q Queuer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = q
}

// Reconcile loads persisted sessions and drops any whose pane no longer
// exists. It must be idempotent and must never publish events.
func (r *Registry) Reconcile(ctx context.Context) error {
	persisted, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("load persisted sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]Session, 0, len(persisted))
	for _, s := range persisted {
		s := s
		if s.Status == StatusStopped {
			r.sessions[s.ID] = &s
			kept = append(kept, s)
			continue
		}
		if r.pane.Exists(ctx, s.PaneName) {
			r.sessions[s.ID] = &s
			kept = append(kept, s)
		} else {
			r.log("dropping %s: pane %s no longer exists", s.ID, s.PaneName)
		}
	}

	return r.persistLocked()
}

// Create provisions a new pane and registers the session.
func (r *Registry) Create(ctx context.Context, p CreateParams) (Session, error) {
	id := newID()
	name := p.Name
	if name == "" {
		name = id
	}

	s := Session{
		ID:           id,
		Name:         name,
		PaneName:     name,
		Provider:     p.Provider,
		Status:       StatusStarting,
		WorkingDir:   p.WorkingDir,
		GitRemoteURL: p.GitRemoteURL,
		FriendlyName: p.FriendlyName,
		CreatedAt:    time.Now().UTC(),
		LastActivity: time.Now().UTC(),
	}

	if err := r.pane.CreateWithCommand(ctx, s.PaneName, s.WorkingDir, p.Command); err != nil {
		return Session{}, fmt.Errorf("create pane: %w", err)
	}
	s.Status = StatusRunning

	r.mu.Lock()
	r.sessions[s.ID] = &s
	err := r.persistLocked()
	r.mu.Unlock()
	if err != nil {
		return Session{}, err
	}

	r.publish(ctx, events.EventSessionCreated, s.ID, nil)
	return s, nil
}

// Get returns a session by id.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// GetByName returns a session by name.
func (r *Registry) GetByName(name string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Name == name {
			return *s, true
		}
	}
	return Session{}, false
}

// PaneName satisfies internal/queue's SessionLookup interface.
func (r *Registry) PaneName(id string) (string, bool) {
	s, ok := r.Get(id)
	if !ok {
		return "", false
	}
	return s.PaneName, true
}

// SessionProvider satisfies internal/queue's SessionLookup interface.
func (r *Registry) SessionProvider(id string) (string, bool) {
	s, ok := r.Get(id)
	if !ok {
		return "", false
	}
	return string(s.Provider), true
}

// List returns sessions, optionally including stopped ones.
func (r *Registry) List(includeStopped bool) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if !includeStopped && s.Status == StatusStopped {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// UpdateStatus sets a session's status and bumps last_activity.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	prev := s.Status
	s.Status = status
	s.LastActivity = time.Now().UTC()
	err := r.persistLocked()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if prev != status {
		r.publish(ctx, events.EventSessionStatusChanged, id, map[string]interface{}{
			"from": string(prev),
			"to":   string(status),
		})
	}
	return nil
}

// SetCurrentTask records the session's current task description, used by
// PUT /sessions/{id}/task.
func (r *Registry) SetCurrentTask(id, task string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.CurrentTask = task
	return r.persistLocked()
}

// SetFriendlyName renames a session, used by PATCH /sessions/{id}.
func (r *Registry) SetFriendlyName(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.FriendlyName = name
	return r.persistLocked()
}

// SetAgentStatus records the agent's self-reported status text.
func (r *Registry) SetAgentStatus(id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	now := time.Now().UTC()
	s.AgentStatusText = text
	s.AgentStatusAt = &now
	return r.persistLocked()
}

// Kill terminates the pane and marks the session stopped. The record is
// retained for audit; it is not removed from the registry.
func (r *Registry) Kill(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	paneName := s.PaneName
	r.mu.Unlock()

	if err := r.pane.Kill(ctx, paneName); err != nil {
		r.log("kill pane %s: %v", paneName, err)
	}

	if err := r.UpdateStatus(ctx, id, StatusStopped); err != nil {
		return err
	}
	r.publish(ctx, events.EventSessionKilled, id, nil)
	return nil
}

// SpawnChild creates a session whose parent is id, inheriting working_dir
// unless overridden, and delivers the spawn prompt once the new pane is
// ready. Returns an error if the parent does not exist.
func (r *Registry) SpawnChild(ctx context.Context, parentID, prompt string, workingDir, name string, command []string) (Session, error) {
	parent, ok := r.Get(parentID)
	if !ok {
		return Session{}, fmt.Errorf("parent session %s not found", parentID)
	}

	wd := workingDir
	if wd == "" {
		wd = parent.WorkingDir
	}

	child, err := r.Create(ctx, CreateParams{
		Name:       name,
		WorkingDir: wd,
		Provider:   parent.Provider,
		Command:    command,
	})
	if err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	r.mu.Lock()
	s := r.sessions[child.ID]
	s.ParentSessionID = parentID
	s.SpawnPrompt = prompt
	s.SpawnedAt = &now
	err = r.persistLocked()
	child = *s
	r.mu.Unlock()
	if err != nil {
		return Session{}, err
	}

	if prompt != "" {
		if err := r.pane.SendText(ctx, child.PaneName, prompt); err != nil {
			r.log("deliver spawn prompt to %s: %v", child.ID, err)
		}
	}

	r.publish(ctx, events.EventSessionSpawned, child.ID, map[string]interface{}{
		"parent_session_id": parentID,
	})
	return child, nil
}

// OpenTerminal best-effort switches the user's terminal to the session's pane.
func (r *Registry) OpenTerminal(ctx context.Context, id string) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	return r.pane.OpenInTerminal(ctx, s.PaneName)
}

// SendInput delivers text straight to a session's pane when bypassQueue
// is set. Otherwise it always enqueues the text as a sequential message;
// it does not check whether the pane could take the text right away.
func (r *Registry) SendInput(ctx context.Context, id, text string, bypassQueue bool) (DeliveryResult, error) {
	s, ok := r.Get(id)
	if !ok {
		return DeliveryFailed, fmt.Errorf("session %s not found", id)
	}

	if bypassQueue {
		if err := r.pane.SendText(ctx, s.PaneName, text); err != nil {
			return DeliveryFailed, err
		}
		return DeliveryDelivered, nil
	}

	if r.queue == nil {
		return DeliveryFailed, fmt.Errorf("queue not wired")
	}
	if err := r.queue.QueueMessage(ctx, id, text, "sequential"); err != nil {
		return DeliveryFailed, err
	}
	return DeliveryQueued, nil
}

func (r *Registry) persistLocked() error {
	all := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, *s)
	}
	return r.store.Save(all)
}

func (r *Registry) publish(ctx context.Context, eventType, sessionID string, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["session_id"] = sessionID
	_ = r.bus.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func newID() string {
	return uuid.New().String()[:8]
}
