// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/prwdo/jellytrack/internal/events"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
)

// StaleReaper is the store operation the Reaper drives.
type StaleReaper interface {
	ReapStale(ctx context.Context, timeout time.Duration) (int64, error)
}

// Reaper periodically ends active sessions that stopped receiving updates.
// It implements suture.Service.
type Reaper struct {
	store    StaleReaper
	notifier Notifier
	timeout  time.Duration
	interval time.Duration

	runningOnce stdsync.Once
	running     chan struct{}
}

// NewReaper creates a reaper. notifier may be nil.
func NewReaper(store StaleReaper, notifier Notifier, timeout, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		store:    store,
		notifier: notifier,
		timeout:  timeout,
		interval: interval,
		running:  make(chan struct{}),
	}
}

// Running is closed once the reap loop has started. It stays closed across
// supervisor restarts.
func (r *Reaper) Running() <-chan struct{} {
	return r.running
}

// Serve runs the loop until ctx is cancelled.
func (r *Reaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runningOnce.Do(func() { close(r.running) })
	logging.Info().Dur("timeout", r.timeout).Dur("interval", r.interval).Msg("Session reaper started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("Stale session reap failed")
			}
		}
	}
}

// RunOnce reaps once and notifies observers when anything changed.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	n, err := r.store.ReapStale(ctx, r.timeout)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	metrics.RecordSessionsEnded(metrics.EndReasonReaped, n)
	logging.Info().Int64("count", n).Msg("Reaped stale sessions")
	if r.notifier != nil {
		r.notifier.NotifySessionsUpdated(ctx, events.ReasonReaped, n)
	}
	return n, nil
}

// String identifies the service in supervisor logs.
func (r *Reaper) String() string {
	return "session-reaper"
}
