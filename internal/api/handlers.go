// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package api

import (
	"context"
	"time"

	"github.com/prwdo/jellytrack/internal/cache"
	"github.com/prwdo/jellytrack/internal/events"
	"github.com/prwdo/jellytrack/internal/metrics"
	"github.com/prwdo/jellytrack/internal/models"
)

// activeCacheTTL bounds staleness when an update notification is lost.
const activeCacheTTL = 5 * time.Second

// SessionStore is the read side of the session store used by the API.
type SessionStore interface {
	ListActive(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	Ping(ctx context.Context) error
}

// Handler serves the HTTP endpoints.
type Handler struct {
	store         SessionStore
	conn          metrics.ConnectionStatus
	excludedUsers []string
	cache         *cache.Cache
	startTime     time.Time
}

// NewHandler creates a handler. conn may be nil before the tracker exists;
// /health then reports the WebSocket as disconnected.
func NewHandler(store SessionStore, conn metrics.ConnectionStatus, excludedUsers []string) *Handler {
	return &Handler{
		store:         store,
		conn:          conn,
		excludedUsers: excludedUsers,
		cache:         cache.New(activeCacheTTL),
		startTime:     time.Now(),
	}
}

// InvalidateCache drops cached listings. It has the events.Handler
// signature so it can be registered on the dispatcher.
func (h *Handler) InvalidateCache(_ context.Context, _ events.SessionsUpdated) {
	h.cache.Clear()
}

// CacheStats exposes the listing cache statistics.
func (h *Handler) CacheStats() cache.Stats {
	return h.cache.GetStats()
}
