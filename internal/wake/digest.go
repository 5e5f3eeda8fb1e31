// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package wake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetctl/sm/internal/queue"
)

const activityTailLines = 5

type digestData struct {
	label           string
	runningSince    time.Time
	agentStatusText string
	agentStatusAt   *time.Time
	activityLines   []string
}

// assembleDigest gathers the child's display label, status, and recent
// activity tail. The two lookups are independent of each other, so they
// fan out under errgroup the way the teacher assembles a trace report
// from several independent sources.
func (s *Scheduler) assembleDigest(ctx context.Context, reg queue.ParentWakeRegistration) (digestData, error) {
	d := digestData{runningSince: reg.RegisteredAt}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sess, ok := s.sessions.Get(reg.ChildSessionID)
		if !ok {
			d.label = reg.ChildSessionID
			return nil
		}
		if sess.FriendlyName != "" {
			d.label = sess.FriendlyName
		} else {
			d.label = sess.ID
		}
		d.agentStatusText = sess.AgentStatusText
		d.agentStatusAt = sess.AgentStatusAt
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		default:
		}
		if s.tail == nil {
			return nil
		}
		lines := s.tail.Tail(reg.ChildSessionID, activityTailLines)
		rendered := make([]string, 0, len(lines))
		for _, l := range lines {
			rendered = append(rendered, fmt.Sprintf("- %s: %s", l.Timestamp.Format(time.Kitchen), l.Text))
		}
		d.activityLines = rendered
		return nil
	})

	if err := g.Wait(); err != nil {
		return digestData{}, fmt.Errorf("assemble digest: %w", err)
	}
	return d, nil
}

// render formats the digest per spec.md 4.6's header/body layout.
func (d digestData) render(noProgress bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[sm dispatch] Child update: %s\n", d.label)
	fmt.Fprintf(&b, "Running for %d min\n", int(time.Since(d.runningSince).Round(time.Minute).Minutes()))

	status := d.agentStatusText
	if status == "" {
		status = "(no status reported)"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)

	if len(d.activityLines) > 0 {
		b.WriteString("Recent activity:\n")
		for _, line := range d.activityLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if noProgress {
		b.WriteString("NO PROGRESS DETECTED since last check-in.\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
