// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"context"

	"github.com/fleetctl/sm/internal/logx"
)

// LogNotifier logs events instead of sending them anywhere. It is the
// default when no chat/email transport is configured.
type LogNotifier struct {
	log func(format string, args ...interface{})
}

// NewLogNotifier creates a Notifier that writes to the daemon log.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logx.Session("notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, event Event) error {
	n.log("notify %s: [%s] %s", event.SessionID, event.Kind, event.Message)
	return nil
}

func (n *LogNotifier) OpenThread(ctx context.Context, sessionID string) (string, error) {
	n.log("open thread for %s (no transport configured)", sessionID)
	return "", nil
}

// Configured reports false: LogNotifier is the no-transport fallback, so
// health reporting should show a warning rather than treat it as a real
// notification channel.
func (n *LogNotifier) Configured() bool {
	return false
}
