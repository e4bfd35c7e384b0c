// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package models

import "time"

// Session is one playback attempt by one user on one device.
//
// StartedAt is set once at creation. PlayDurationSeconds and
// PausedDurationSeconds only ever grow. EndedAt is non-nil exactly when
// IsActive is false.
type Session struct {
	SessionID string `json:"session_id"`

	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`

	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	ClientName string `json:"client_name"`

	MediaID       string  `json:"media_id"`
	MediaTitle    string  `json:"media_title"`
	MediaType     string  `json:"media_type"`
	SeriesName    *string `json:"series_name,omitempty"`
	SeasonNumber  *int    `json:"season_number,omitempty"`
	EpisodeNumber *int    `json:"episode_number,omitempty"`

	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	LastProgressUpdate time.Time  `json:"last_progress_update"`

	PlayDurationSeconds   int64 `json:"play_duration_seconds"`
	PausedDurationSeconds int64 `json:"paused_duration_seconds"`

	// Latest observed player state, used only to compute the next delta.
	LastPositionSeconds int64 `json:"last_position_seconds"`
	LastStateIsPaused   bool  `json:"last_state_is_paused"`

	IsActive bool `json:"is_active"`
}

// AggregateBucket is the hourly rollup of compacted sessions for one
// (date, hour, user, media, device, client) tuple.
type AggregateBucket struct {
	Date       string `json:"date"` // YYYY-MM-DD
	Hour       int    `json:"hour"` // 0-23
	UserID     string `json:"user_id"`
	MediaID    string `json:"media_id"`
	DeviceName string `json:"device_name"`
	ClientName string `json:"client_name"`

	UserName   string  `json:"user_name"`
	MediaTitle string  `json:"media_title"`
	MediaType  string  `json:"media_type"`
	SeriesName *string `json:"series_name,omitempty"`

	SessionCount  int64 `json:"session_count"`
	PlaySeconds   int64 `json:"play_seconds"`
	PausedSeconds int64 `json:"paused_seconds"`
}

// SessionFilter narrows ListActive. Empty fields match everything.
type SessionFilter struct {
	UserID     string `validate:"omitempty,max=128"`
	DeviceName string `validate:"omitempty,max=256"`
	MediaType  string `validate:"omitempty,max=64,printascii"`

	// ExcludedUserNames hides sessions whose user_name is in the list.
	// Rows with no user name are never hidden.
	ExcludedUserNames []string `validate:"-"`
}

// PlaybackEvent is the normalized form of every upstream playback message.
type PlaybackEvent struct {
	SessionID string

	UserID   string
	UserName string

	DeviceID   string
	DeviceName string
	ClientName string

	ItemID        string
	ItemName      string
	ItemType      string
	SeriesName    *string
	SeasonNumber  *int
	EpisodeNumber *int

	PositionSeconds int64
	IsPaused        bool
}

// NewSession builds the first-seen record for ev with zero accumulators.
func (ev *PlaybackEvent) NewSession(now time.Time) *Session {
	return &Session{
		SessionID:           ev.SessionID,
		UserID:              ev.UserID,
		UserName:            ev.UserName,
		DeviceID:            ev.DeviceID,
		DeviceName:          ev.DeviceName,
		ClientName:          ev.ClientName,
		MediaID:             ev.ItemID,
		MediaTitle:          ev.ItemName,
		MediaType:           ev.ItemType,
		SeriesName:          ev.SeriesName,
		SeasonNumber:        ev.SeasonNumber,
		EpisodeNumber:       ev.EpisodeNumber,
		StartedAt:           now,
		LastProgressUpdate:  now,
		LastPositionSeconds: ev.PositionSeconds,
		LastStateIsPaused:   ev.IsPaused,
		IsActive:            true,
	}
}

// SessionProgress is one accumulated step for an active session: the new
// player state plus the seconds to add to each accumulator.
type SessionProgress struct {
	SessionID       string
	PositionSeconds int64
	IsPaused        bool
	PlayAdd         int64
	PausedAdd       int64
	At              time.Time
}
