// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider abstracts the per-agent pane-reading heuristics the
// output monitor and message queue need: is the agent idle, is its input
// prompt visible, has the user already started typing. Each agent family
// (claude, codex, codex-app) registers a detector in a Registry keyed by
// name, the same pattern the teacher uses for its log parser types.
package provider

// State is the lifecycle classification a detector assigns to a capture.
type State string

const (
	StateRunning           State = "running"
	StateWaitingInput      State = "waiting_input"
	StateWaitingPermission State = "waiting_permission"
	StateError             State = "error"
)

// Provider is the capability surface a pane detector implements.
type Provider interface {
	// DetectIdle classifies the trailing region of a pane capture.
	DetectIdle(capture []byte) State

	// PromptVisible reports whether the capture's tail shows the agent's
	// input prompt (used to close the stale-idle delivery race).
	PromptVisible(capture []byte) bool

	// PeekUserInput reports text the user has already typed at the
	// prompt, if any. Implementations that cannot observe typed input
	// (codex-app) always return "", false.
	PeekUserInput(capture []byte) (string, bool)
}

// Registry maps a provider tag to its detector.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds the builtin registry: claude, codex, codex-app.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	claude := &ClaudeProvider{}
	codex := &CodexProvider{}
	r.Register("claude", claude)
	r.Register("codex", codex)
	r.Register("codex-app", &CodexAppProvider{CodexProvider: codex})
	return r
}

// Register adds or replaces a detector under name.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get looks up a detector by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
