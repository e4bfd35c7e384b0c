// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package api

import (
	"net/http"
	"time"

	"github.com/prwdo/jellytrack/internal/cache"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/models"
)

// ActiveSessions lists active sessions filtered by user_id, device_name and
// media_type, with excluded users removed.
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	filter := models.SessionFilter{
		UserID:     q.Get("user_id"),
		DeviceName: q.Get("device_name"),
		MediaType:  q.Get("media_type"),
	}
	if apiErr := validateRequest(&filter); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}
	filter.ExcludedUserNames = h.excludedUsers

	key := cache.GenerateKey("ActiveSessions", filter)
	if cached, ok := h.cache.Get(key); ok {
		if sessions, ok := cached.([]models.Session); ok {
			respondSessions(w, sessions, start)
			return
		}
	}

	sessions, err := h.store.ListActive(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list active sessions", err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	h.cache.Set(key, sessions)

	logging.Ctx(r.Context()).Debug().
		Int("count", len(sessions)).
		Str("user_id", sanitizeLogValue(filter.UserID)).
		Msg("Listed active sessions")

	respondSessions(w, sessions, start)
}

func respondSessions(w http.ResponseWriter, sessions []models.Session, start time.Time) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   sessions,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
