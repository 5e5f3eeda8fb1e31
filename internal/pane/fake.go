// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pane

import (
	"context"
	"fmt"
	"sync"
)

// FakeController is an in-memory Controller for tests. It never shells
// out; callers seed and inspect state directly.
type FakeController struct {
	mu       sync.Mutex
	panes    map[string]bool
	captures map[string][]byte
	sent     map[string][]string
	keys     map[string][]string
	killed   map[string]bool
}

// NewFakeController creates an empty fake.
func NewFakeController() *FakeController {
	return &FakeController{
		panes:    make(map[string]bool),
		captures: make(map[string][]byte),
		sent:     make(map[string][]string),
		keys:     make(map[string][]string),
		killed:   make(map[string]bool),
	}
}

// SetCapture sets what Capture returns for a pane, for monitor tests.
func (f *FakeController) SetCapture(name string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures[name] = content
}

// SentText returns everything sent to a pane via SendText, in order.
func (f *FakeController) SentText(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[name]...)
}

func (f *FakeController) Exists(ctx context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panes[name] && !f.killed[name]
}

func (f *FakeController) CreateWithCommand(ctx context.Context, name, workdir string, command []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panes[name] {
		return fmt.Errorf("pane %s already exists", name)
	}
	f.panes[name] = true
	return nil
}

func (f *FakeController) SendText(ctx context.Context, name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.panes[name] || f.killed[name] {
		return fmt.Errorf("pane %s does not exist", name)
	}
	f.sent[name] = append(f.sent[name], text)
	return nil
}

func (f *FakeController) SendKey(ctx context.Context, name, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.panes[name] || f.killed[name] {
		return fmt.Errorf("pane %s does not exist", name)
	}
	f.keys[name] = append(f.keys[name], key)
	return nil
}

func (f *FakeController) Capture(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.panes[name] || f.killed[name] {
		return nil, fmt.Errorf("pane %s does not exist", name)
	}
	return f.captures[name], nil
}

func (f *FakeController) Kill(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed[name] = true
	return nil
}

func (f *FakeController) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name, alive := range f.panes {
		if alive && !f.killed[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *FakeController) OpenInTerminal(ctx context.Context, name string) error {
	return nil
}
