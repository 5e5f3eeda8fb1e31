// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fleetctl/sm/internal/activity"
	"github.com/fleetctl/sm/internal/session"
)

// SessionHandler serves the /sessions resource group.
type SessionHandler struct {
	registry *session.Registry
	tail     *activity.Buffers
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(registry *session.Registry, tail *activity.Buffers) *SessionHandler {
	return &SessionHandler{registry: registry, tail: tail}
}

// createSessionRequest is the POST /sessions body.
type createSessionRequest struct {
	Name         string   `json:"name"`
	WorkingDir   string   `json:"working_dir"`
	GitRemoteURL string   `json:"git_remote_url"`
	Provider     string   `json:"provider"`
	FriendlyName string   `json:"friendly_name"`
	Command      []string `json:"command"`
}

// List returns every live session, or every session ever created when
// ?all=true.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	includeStopped := r.URL.Query().Get("all") == "true"
	WriteJSON(w, http.StatusOK, h.registry.List(includeStopped))
}

// Get returns one session by id.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, ok := h.registry.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// Create provisions a new session pane.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.WorkingDir == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "working_dir is required")
		return
	}

	s, err := h.registry.Create(r.Context(), session.CreateParams{
		Name:         req.Name,
		WorkingDir:   req.WorkingDir,
		GitRemoteURL: req.GitRemoteURL,
		Provider:     session.Provider(req.Provider),
		FriendlyName: req.FriendlyName,
		Command:      req.Command,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, s)
}

// patchSessionRequest is the PATCH /sessions/{id} body.
type patchSessionRequest struct {
	FriendlyName *string `json:"friendly_name"`
}

// Update applies a partial update to a session.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.registry.Get(id); !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}

	var req patchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	if req.FriendlyName != nil {
		if err := h.registry.SetFriendlyName(id, *req.FriendlyName); err != nil {
			WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
			return
		}
	}

	s, _ := h.registry.Get(id)
	WriteJSON(w, http.StatusOK, s)
}

// Delete kills the session's pane and marks it stopped.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.registry.Kill(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

// taskRequest is the PUT /sessions/{id}/task body.
type taskRequest struct {
	Task string `json:"task"`
}

// SetTask records the session's current task description.
func (h *SessionHandler) SetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if err := h.registry.SetCurrentTask(id, req.Task); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Summary delegates to an external summarizer, which is out of core
// scope; the endpoint exists so CLI/hook callers get a stable 501 rather
// than a 404 until one is configured.
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.registry.Get(id); !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	lines := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		lines, _ = strconv.Atoi(v)
	}
	_ = lines
	WriteError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "no external summarizer configured")
}

// sendRequest is the POST /sessions/{id}/send body.
type sendRequest struct {
	Text        string `json:"text"`
	BypassQueue bool   `json:"bypass_queue"`
}

// Send delivers text to a session's pane, immediately or via the message
// queue, reporting which outcome occurred.
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.Text == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "text is required")
		return
	}

	result, err := h.registry.SendInput(r.Context(), id, req.Text, req.BypassQueue)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]string{"result": string(result), "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

// activityRequest is the PUT /sessions/{id}/activity body.
type activityRequest struct {
	Text string `json:"text"`
}

// Activity appends a line to the session's tool-activity tail, consumed
// by the parent-wake digest.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.registry.Get(id); !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	h.tail.Append(id, req.Text)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
