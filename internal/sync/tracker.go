// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/prwdo/jellytrack/internal/logging"
)

const (
	catchUpTimeout     = 10 * time.Second
	reaperStartTimeout = 5 * time.Second
)

// Tracker ties the WebSocket stream to the reconciler. On every connection
// it waits for the reaper to be running, then feeds a one-shot REST
// snapshot through the reconciler before frames are read.
//
// Tracker implements suture.Service.
type Tracker struct {
	ws         *WebSocketClient
	reconciler *Reconciler
	api        JellyfinAPI
	reaper     *Reaper
}

// TrackerConfig wires a Tracker. API and Reaper may be nil; without an API
// the catch-up step is skipped.
type TrackerConfig struct {
	WebSocketURL string
	Reconciler   *Reconciler
	API          JellyfinAPI
	Reaper       *Reaper

	// WebSocket overrides timing for tests. URL, Handler and OnConnect are
	// always set by the tracker.
	WebSocket WebSocketConfig
}

// NewTracker creates a tracker and its WebSocket client.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("tracker: reconciler is required")
	}
	if cfg.WebSocketURL == "" {
		return nil, fmt.Errorf("tracker: websocket url is required")
	}
	t := &Tracker{
		reconciler: cfg.Reconciler,
		api:        cfg.API,
		reaper:     cfg.Reaper,
	}
	wsCfg := cfg.WebSocket
	wsCfg.URL = cfg.WebSocketURL
	wsCfg.Handler = cfg.Reconciler
	wsCfg.OnConnect = t.catchUp
	t.ws = NewWebSocketClient(wsCfg)
	return t, nil
}

// Serve runs the WebSocket client until ctx is cancelled.
func (t *Tracker) Serve(ctx context.Context) error {
	return t.ws.Run(ctx)
}

// Client returns the WebSocket client, for status reporting.
func (t *Tracker) Client() *WebSocketClient {
	return t.ws
}

// String identifies the service in supervisor logs.
func (t *Tracker) String() string {
	return "jellyfin-tracker"
}

// catchUp reconciles the current server state after a (re)connect so that
// sessions that ended during an outage are finalized.
func (t *Tracker) catchUp(ctx context.Context) error {
	t.waitForReaper(ctx)
	if t.api == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, catchUpTimeout)
	defer cancel()

	sessions, err := t.api.GetSessions(fetchCtx)
	if err != nil {
		return fmt.Errorf("catch-up fetch: %w", err)
	}
	logging.Ctx(ctx).Info().Int("sessions", len(sessions)).Msg("Reconciling current sessions after connect")
	return t.reconciler.ApplySnapshot(ctx, sessions)
}

func (t *Tracker) waitForReaper(ctx context.Context) {
	if t.reaper == nil {
		return
	}
	timer := time.NewTimer(reaperStartTimeout)
	defer timer.Stop()
	select {
	case <-t.reaper.Running():
	case <-ctx.Done():
	case <-timer.C:
		logging.Ctx(ctx).Warn().Msg("Session reaper not running; continuing catch-up")
	}
}
