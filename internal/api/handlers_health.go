// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prwdo/jellytrack/internal/models"
)

const pingTimeout = 2 * time.Second

// Health reports database connectivity and upstream WebSocket status. It
// always answers 200 while the process is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{Status: "ok"}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		status.DBConnected = h.store.Ping(ctx) == nil
		cancel()
	}
	if h.conn != nil {
		status.WSConnected = h.conn.Connected()
		status.WSLastMessageAt = h.conn.LastMessageAt()
	}

	writeJSON(w, http.StatusOK, status)
}
