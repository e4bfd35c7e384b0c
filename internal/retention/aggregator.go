// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prwdo/jellytrack/internal/config"
	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
)

// ErrDisabled is returned by RunNow when retention is turned off.
var ErrDisabled = errors.New("retention disabled")

// Compactor is the store operation the Aggregator drives.
type Compactor interface {
	Compact(ctx context.Context, cutoff time.Time) (database.CompactResult, error)
}

// Stats describes past runs.
type Stats struct {
	LastRun        time.Time
	LastErr        error
	LastResult     database.CompactResult
	TotalCompacted int64
	Runs           int64
}

// Aggregator periodically compacts aged sessions.
type Aggregator struct {
	store         Compactor
	retentionDays int
	interval      time.Duration
	now           func() time.Time

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool

	// runMu serializes compactions.
	runMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewAggregator creates an aggregator from the retention settings.
func NewAggregator(store Compactor, cfg config.RetentionConfig) *Aggregator {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Aggregator{
		store:         store,
		retentionDays: cfg.RetentionDays,
		interval:      interval,
		now:           time.Now,
	}
}

// SetClock replaces the wall clock; used by tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// Start begins the background loop. Calling Start twice is a no-op.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.running = true
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run()

	if a.retentionDays > 0 {
		logging.Info().Int("retention_days", a.retentionDays).Dur("interval", a.interval).Msg("Aggregator started")
	} else {
		logging.Info().Msg("Aggregator started with compaction disabled")
	}
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.cancel()
	a.running = false
	a.mu.Unlock()

	a.wg.Wait()
	logging.Info().Msg("Aggregator stopped")
}

// IsRunning reports whether the loop is active.
func (a *Aggregator) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Aggregator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.tick()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Aggregator) tick() {
	if a.retentionDays <= 0 {
		metrics.RecordCompactionSkipped()
		return
	}
	if _, err := a.RunNow(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Compaction failed; retrying next interval")
	}
}

// RunNow performs one compaction, waiting for any run already in
// progress.
func (a *Aggregator) RunNow(ctx context.Context) (database.CompactResult, error) {
	if a.retentionDays <= 0 {
		return database.CompactResult{}, ErrDisabled
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	start := a.now()
	cutoff := start.UTC().AddDate(0, 0, -a.retentionDays)
	res, err := a.store.Compact(ctx, cutoff)
	metrics.RecordCompaction(res.Sessions, err)

	a.statsMu.Lock()
	a.stats.LastRun = start
	a.stats.LastErr = err
	a.stats.Runs++
	if err == nil {
		a.stats.LastResult = res
		a.stats.TotalCompacted += res.Sessions
	}
	a.statsMu.Unlock()

	if err != nil {
		return database.CompactResult{}, err
	}
	logging.Info().
		Time("cutoff", cutoff).
		Int64("sessions", res.Sessions).
		Int64("buckets", res.Buckets).
		Dur("duration", a.now().Sub(start)).
		Msg("Compaction finished")
	return res, nil
}

// Stats returns a snapshot of run statistics.
func (a *Aggregator) Stats() Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}
