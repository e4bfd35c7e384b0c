// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import "github.com/prwdo/jellytrack/internal/models"

const unknownValue = "Unknown"

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

// eventFromItem fills the subject fields shared by every message shape.
func eventFromItem(ev *models.PlaybackEvent, item *models.JellyfinNowPlayingItem) {
	ev.ItemID = item.ID
	ev.ItemName = orUnknown(item.Name)
	ev.ItemType = orUnknown(item.Type)
	ev.SeriesName = item.SeriesName
	ev.SeasonNumber = item.ParentIndexNumber
	ev.EpisodeNumber = item.IndexNumber
}

// EventFromSession normalizes one snapshot entry. It reports false for
// entries with no now-playing item or no id; those are idle clients.
func EventFromSession(s *models.JellyfinSession) (*models.PlaybackEvent, bool) {
	if s == nil || s.NowPlayingItem == nil || s.ID == "" {
		return nil, false
	}
	ev := &models.PlaybackEvent{
		SessionID:       s.ID,
		UserID:          s.UserID,
		UserName:        orUnknown(s.UserName),
		DeviceID:        s.DeviceID,
		DeviceName:      orUnknown(s.DeviceName),
		ClientName:      orUnknown(s.Client),
		PositionSeconds: s.PlayState.Position(),
		IsPaused:        s.PlayState.Paused(),
	}
	eventFromItem(ev, s.NowPlayingItem)
	return ev, true
}

// EventFromPlaybackStart normalizes a PlaybackStart payload. A start always
// begins at position 0, unpaused; snapshots carry the real playhead.
func EventFromPlaybackStart(p *models.JellyfinPlaybackStart) (*models.PlaybackEvent, bool) {
	if p == nil || p.SessionID == "" || p.Item == nil {
		return nil, false
	}
	ev := &models.PlaybackEvent{
		SessionID:  p.SessionID,
		UserID:     p.UserID,
		UserName:   orUnknown(p.Username),
		DeviceID:   p.DeviceID,
		DeviceName: orUnknown(p.DeviceName),
		ClientName: orUnknown(p.Client),
	}
	eventFromItem(ev, p.Item)
	return ev, true
}
