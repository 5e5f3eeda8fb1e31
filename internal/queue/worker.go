// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// ensureWorker starts target's delivery loop if it isn't already running.
func (q *Queue) ensureWorker(target string) {
	q.mu.Lock()
	if _, ok := q.workers[target]; ok {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.workers[target] = cancel
	ch := make(chan struct{}, 1)
	q.wake[target] = ch
	q.mu.Unlock()

	go q.workerLoop(ctx, target, ch)
}

// signal wakes target's worker for immediate re-evaluation. It does
// nothing if no worker is running for target.
func (q *Queue) signal(target string) {
	q.mu.Lock()
	ch, ok := q.wake[target]
	q.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// stopWorker tears down target's loop once its queue is empty and no
// retry is pending, matching the teacher's start-on-demand,
// stop-when-idle viewer lifecycle.
func (q *Queue) stopWorker(target string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.workers[target]; ok {
		cancel()
		delete(q.workers, target)
		delete(q.wake, target)
	}
}

func (q *Queue) workerLoop(ctx context.Context, target string, wake <-chan struct{}) {
	ticker := time.NewTicker(q.cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		idle, err := q.tryDeliverNext(ctx, target)
		if err != nil {
			q.log("deliver loop for %s: %v", target, err)
		}
		if idle {
			q.stopWorker(target)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

// tryDeliverNext attempts to deliver target's oldest pending message that
// is still below the attempt limit, if delivery conditions are met. It
// returns idle=true when the target has no such message, signalling the
// worker should stop.
func (q *Queue) tryDeliverNext(ctx context.Context, target string) (bool, error) {
	pending, err := q.GetPendingMessages(ctx, target)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return true, nil
	}

	q.mu.Lock()
	st := q.stateFor(target)
	if time.Now().Before(st.nextAttemptAt) {
		q.mu.Unlock()
		return false, nil
	}
	q.mu.Unlock()

	var msg QueuedMessage
	found := false
	for _, m := range pending {
		if m.Attempts < q.cfg.MaxAttempts {
			msg, found = m, true
			break
		}
	}
	if !found {
		return true, nil
	}
	eligible, err := q.eligible(ctx, target, msg.DeliveryMode)
	if err != nil {
		return false, err
	}
	if !eligible {
		return false, nil
	}

	paneName, ok := q.sessions.PaneName(target)
	if !ok {
		q.log("target %s has no known pane; leaving message %d queued", target, msg.ID)
		return false, nil
	}

	sendErr := q.pane.SendText(ctx, paneName, msg.Text)
	if sendErr != nil {
		return false, q.recordFailure(ctx, target, msg, sendErr)
	}
	return false, q.recordSuccess(ctx, target, msg)
}

// eligible applies the per-mode gating rules from the delivery-mode spec.
func (q *Queue) eligible(ctx context.Context, target string, mode DeliveryMode) (bool, error) {
	if mode == ModeUrgent {
		return true, nil
	}

	q.mu.Lock()
	isIdle := q.stateFor(target).isIdle
	q.mu.Unlock()

	providerName, _ := q.sessions.SessionProvider(target)
	det, hasDetector := q.providers.Get(providerName)

	promptVisible := false
	if hasDetector {
		paneName, ok := q.sessions.PaneName(target)
		if ok {
			capture, err := q.pane.Capture(ctx, paneName)
			if err == nil {
				promptVisible = det.PromptVisible(capture)
				if typed, typing := det.PeekUserInput(capture); typing && typed != "" {
					// User has started typing; defer so we don't clobber it.
					return false, nil
				}
			}
		}
	}

	switch mode {
	case ModeSequential:
		return isIdle && promptVisible, nil
	case ModeImportant:
		return isIdle || promptVisible, nil
	default:
		return false, fmt.Errorf("unknown delivery mode %q", mode)
	}
}

func (q *Queue) recordSuccess(ctx context.Context, target string, msg QueuedMessage) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, `UPDATE message_queue SET delivered_at = ? WHERE id = ? AND delivered_at IS NULL`,
		now.Format(time.RFC3339Nano), msg.ID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	q.mu.Lock()
	st := q.stateFor(target)
	st.lastDeliverAt = now
	st.nextAttemptAt = time.Time{}
	cb := q.onParentWakeDelivered
	q.mu.Unlock()

	if cb != nil && msg.DeliveryMode != ModeUrgent && msg.ParentSessionID != "" {
		cb(target, msg.ParentSessionID)
	}
	return nil
}

func (q *Queue) recordFailure(ctx context.Context, target string, msg QueuedMessage, sendErr error) error {
	q.log("send to %s (message %d) failed: %v", target, msg.ID, sendErr)

	attempts := msg.Attempts + 1
	if _, err := q.db.ExecContext(ctx, `UPDATE message_queue SET attempts = ? WHERE id = ?`, attempts, msg.ID); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	q.mu.Lock()
	st := q.stateFor(target)
	if attempts >= q.cfg.MaxAttempts {
		q.log("message %d to %s exceeded max attempts, giving up (left undelivered)", msg.ID, target)
		st.nextAttemptAt = time.Time{}
	} else {
		st.nextAttemptAt = time.Now().Add(backoff(attempts, q.cfg.BackoffStart, q.cfg.BackoffCap))
	}
	q.mu.Unlock()

	return nil
}

// backoff computes exponential backoff with ±20% jitter, capped at cap.
func backoff(attempt int, start, maxDur time.Duration) time.Duration {
	d := start
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxDur {
			d = maxDur
			break
		}
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	scaled := time.Duration(float64(d) * jitter)
	if scaled > maxDur {
		scaled = maxDur
	}
	return scaled
}
