// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wake runs the parent-wake scheduler: a single cooperative task
// that polls active parent_wake_registrations and, once a child's period
// elapses, assembles a digest of its recent activity and enqueues it to
// the parent as an important-mode message.
package wake

import (
	"context"
	"errors"
	"time"

	"github.com/fleetctl/sm/internal/activity"
	"github.com/fleetctl/sm/internal/logx"
	"github.com/fleetctl/sm/internal/queue"
	"github.com/fleetctl/sm/internal/session"
)

// ErrNoRegistration is returned by DispatchNow when childID has no active
// parent-wake registration to dispatch.
var ErrNoRegistration = errors.New("no active parent-wake registration")

// Config tunes the scheduler's poll cadence.
type Config struct {
	PollInterval time.Duration
}

// WithDefaults fills the zero value with the spec default.
func (c Config) WithDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	return c
}

// SessionLookup is the slice of internal/session.Registry the scheduler
// needs to describe a child session in its digest.
type SessionLookup interface {
	Get(id string) (session.Session, bool)
}

// Scheduler is the ParentWakeScheduler.
type Scheduler struct {
	cfg      Config
	queue    *queue.Queue
	sessions SessionLookup
	tail     *activity.Buffers
	log      func(format string, args ...interface{})
}

// New creates a Scheduler.
func New(cfg Config, q *queue.Queue, sessions SessionLookup, tail *activity.Buffers) *Scheduler {
	return &Scheduler{
		cfg:      cfg.WithDefaults(),
		queue:    q,
		sessions: sessions,
		tail:     tail,
		log:      logx.Session("wake"),
	}
}

// Run polls for due registrations every poll interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// DispatchNow immediately builds and sends childID's digest, bypassing the
// poll cadence — the core behind "sm dispatch", for a hook or operator that
// wants a parent update pushed now rather than waiting out the period.
func (s *Scheduler) DispatchNow(ctx context.Context, childID string) error {
	reg, ok, err := s.queue.GetRegistration(ctx, childID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRegistration
	}
	return s.wake(ctx, reg, time.Now().UTC())
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.queue.DueWakes(ctx, now)
	if err != nil {
		s.log("list due wakes: %v", err)
		return
	}

	for _, reg := range due {
		if err := s.wake(ctx, reg, now); err != nil {
			s.log("wake %s: %v", reg.ChildSessionID, err)
		}
	}
}

func (s *Scheduler) wake(ctx context.Context, reg queue.ParentWakeRegistration, now time.Time) error {
	digest, err := s.assembleDigest(ctx, reg)
	if err != nil {
		return err
	}

	noProgress := reg.LastStatusAtPrevWake != nil && digest.agentStatusAt != nil &&
		reg.LastStatusAtPrevWake.Equal(*digest.agentStatusAt)

	text := digest.render(noProgress)

	_, err = s.queue.Enqueue(ctx, reg.ParentSessionID, text, queue.ModeImportant, queue.EnqueueOptions{
		SenderSessionID: reg.ChildSessionID,
	})
	if err != nil {
		return err
	}

	return s.queue.RecordWake(ctx, reg, now, digest.agentStatusAt, noProgress)
}
