// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"regexp"
	"strings"
)

// codexPromptRe matches Codex CLI's boxed input prompt.
var codexPromptRe = regexp.MustCompile(`(?m)^\s*▌\s*$`)

// codexApprovalRe matches Codex's approval banner for sandboxed commands.
var codexApprovalRe = regexp.MustCompile(`(?i)(approve|allow) (this )?(command|patch)`)

var codexErrorRe = regexp.MustCompile(`(?i)^(error:|fatal:|panic:)`)

// CodexProvider detects the Codex CLI's pane patterns.
type CodexProvider struct{}

func (p *CodexProvider) DetectIdle(capture []byte) State {
	switch {
	case codexErrorRe.Match(capture):
		return StateError
	case codexApprovalRe.Match(capture):
		return StateWaitingPermission
	case codexPromptRe.Match(capture):
		return StateWaitingInput
	default:
		return StateRunning
	}
}

func (p *CodexProvider) PromptVisible(capture []byte) bool {
	return codexPromptRe.Match(capture)
}

func (p *CodexProvider) PeekUserInput(capture []byte) (string, bool) {
	lines := strings.Split(strings.TrimRight(string(capture), "\n"), "\n")
	if len(lines) == 0 {
		return "", false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	last = strings.TrimPrefix(last, "▌")
	last = strings.TrimSpace(last)
	if last == "" {
		return "", false
	}
	return last, true
}

// CodexAppProvider wraps CodexProvider for the app-embedded variant, which
// does not expose typed-but-unsubmitted input in its pane output.
type CodexAppProvider struct {
	*CodexProvider
}

func (p *CodexAppProvider) PeekUserInput(capture []byte) (string, bool) {
	return "", false
}
