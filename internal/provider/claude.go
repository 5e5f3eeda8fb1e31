// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"regexp"
	"strings"
)

// claudePromptRe matches the trailing input box Claude Code draws around
// its prompt, e.g. "│ > " at the start of the last visible line.
var claudePromptRe = regexp.MustCompile(`(?m)^\s*(>|│\s*>)\s*$`)

// claudePermissionRe matches the permission-request banner Claude Code
// prints before a tool call it isn't pre-approved for.
var claudePermissionRe = regexp.MustCompile(`(?i)(do you want to (proceed|allow)|permission to (run|use)|allow this (tool|action))`)

// claudeErrorRe matches fatal error banners.
var claudeErrorRe = regexp.MustCompile(`(?i)^(error:|fatal:|panic:)`)

// ClaudeProvider detects Claude Code's pane patterns.
type ClaudeProvider struct{}

func (p *ClaudeProvider) DetectIdle(capture []byte) State {
	text := string(capture)
	switch {
	case claudeErrorRe.Match(capture):
		return StateError
	case claudePermissionRe.MatchString(text):
		return StateWaitingPermission
	case claudePromptRe.Match(capture):
		return StateWaitingInput
	default:
		return StateRunning
	}
}

func (p *ClaudeProvider) PromptVisible(capture []byte) bool {
	return claudePromptRe.Match(capture)
}

// PeekUserInput returns whatever follows the prompt glyph on the last
// line, if the user has started typing there.
func (p *ClaudeProvider) PeekUserInput(capture []byte) (string, bool) {
	lines := strings.Split(strings.TrimRight(string(capture), "\n"), "\n")
	if len(lines) == 0 {
		return "", false
	}
	last := lines[len(lines)-1]
	idx := strings.IndexByte(last, '>')
	if idx < 0 {
		return "", false
	}
	text := strings.TrimSpace(last[idx+1:])
	if text == "" {
		return "", false
	}
	return text, true
}
