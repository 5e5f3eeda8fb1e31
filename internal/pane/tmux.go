// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pane

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// TmuxController implements Controller against a real tmux binary. Every
// call runs tmux as a subprocess with the caller's context controlling
// the timeout, matching spec.md §5's "non-blocking subprocess invocations
// with a strict per-call timeout" requirement.
type TmuxController struct{}

// NewTmuxController creates a tmux-backed Controller.
func NewTmuxController() *TmuxController {
	return &TmuxController{}
}

func (t *TmuxController) Exists(ctx context.Context, name string) bool {
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", name)
	return cmd.Run() == nil
}

func (t *TmuxController) CreateWithCommand(ctx context.Context, name, workdir string, command []string) error {
	args := []string{"new-session", "-d", "-s", name}
	if workdir != "" {
		args = append(args, "-c", workdir)
	}
	args = append(args, command...)

	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux new-session failed: %s: %w", stderr.String(), err)
	}
	return nil
}

func (t *TmuxController) SendText(ctx context.Context, name, text string) error {
	loadCmd := exec.CommandContext(ctx, "tmux", "load-buffer", "-")
	loadCmd.Stdin = strings.NewReader(text)
	if err := loadCmd.Run(); err != nil {
		return fmt.Errorf("tmux load-buffer failed: %w", err)
	}

	pasteCmd := exec.CommandContext(ctx, "tmux", "paste-buffer", "-d", "-t", name)
	if err := pasteCmd.Run(); err != nil {
		return fmt.Errorf("tmux paste-buffer failed: %w", err)
	}
	return nil
}

func (t *TmuxController) SendKey(ctx context.Context, name, key string) error {
	cmd := exec.CommandContext(ctx, "tmux", "send-keys", "-t", name, key)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux send-keys failed: %w", err)
	}
	return nil
}

func (t *TmuxController) Capture(ctx context.Context, name string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", "capture-pane", "-t", name, "-p", "-e")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("tmux capture-pane failed: %w", err)
	}
	return out, nil
}

func (t *TmuxController) Kill(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "tmux", "kill-session", "-t", name)
	return cmd.Run()
}

func (t *TmuxController) List(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "tmux", "list-sessions", "-F", "#{session_name}")
	out, err := cmd.Output()
	if err != nil {
		if strings.Contains(err.Error(), "no server running") {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (t *TmuxController) OpenInTerminal(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "tmux", "switch-client", "-t", name)
	return cmd.Run()
}

// filterTMUXEnv strips TMUX from the environment so new-session calls
// made from inside a tmux pane don't nest under the wrong server.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}
