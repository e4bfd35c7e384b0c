// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"testing"

	"github.com/prwdo/jellytrack/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestEventFromSession(t *testing.T) {
	s := &models.JellyfinSession{
		ID:         "s1",
		Client:     "Jellyfin Web",
		DeviceID:   "dev-1",
		DeviceName: "Living Room",
		UserID:     "u1",
		UserName:   "alice",
		NowPlayingItem: &models.JellyfinNowPlayingItem{
			ID:                "ep-1",
			Name:              "Pilot",
			Type:              "Episode",
			SeriesName:        ptr("Show"),
			ParentIndexNumber: ptr(2),
			IndexNumber:       ptr(5),
		},
		PlayState: &models.JellyfinPlayState{
			PositionTicks: ptr(int64(125 * models.TicksPerSecond)),
			IsPaused:      ptr(true),
		},
	}

	ev, ok := EventFromSession(s)
	if !ok {
		t.Fatal("EventFromSession() ok = false, want true")
	}
	checkStringEqual(t, "SessionID", ev.SessionID, "s1")
	checkStringEqual(t, "ClientName", ev.ClientName, "Jellyfin Web")
	checkStringEqual(t, "ItemName", ev.ItemName, "Pilot")
	checkInt64Equal(t, "PositionSeconds", ev.PositionSeconds, 125)
	checkTrue(t, "IsPaused", ev.IsPaused)
	if ev.SeasonNumber == nil || *ev.SeasonNumber != 2 {
		t.Errorf("SeasonNumber = %v, want 2", ev.SeasonNumber)
	}
	if ev.EpisodeNumber == nil || *ev.EpisodeNumber != 5 {
		t.Errorf("EpisodeNumber = %v, want 5", ev.EpisodeNumber)
	}
}

func TestEventFromSession_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		session *models.JellyfinSession
		wantOK  bool
	}{
		{"nil session", nil, false},
		{"idle session", &models.JellyfinSession{ID: "s1"}, false},
		{"missing id", &models.JellyfinSession{NowPlayingItem: &models.JellyfinNowPlayingItem{ID: "m"}}, false},
		{"null play state", &models.JellyfinSession{ID: "s1", NowPlayingItem: &models.JellyfinNowPlayingItem{ID: "m"}}, true},
		{"null ticks", &models.JellyfinSession{ID: "s1", NowPlayingItem: &models.JellyfinNowPlayingItem{ID: "m"}, PlayState: &models.JellyfinPlayState{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := EventFromSession(tt.session)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			checkInt64Equal(t, "PositionSeconds", ev.PositionSeconds, 0)
			checkTrue(t, "not paused", !ev.IsPaused)
			checkStringEqual(t, "UserName", ev.UserName, "Unknown")
			checkStringEqual(t, "DeviceName", ev.DeviceName, "Unknown")
			checkStringEqual(t, "ClientName", ev.ClientName, "Unknown")
			checkStringEqual(t, "ItemName", ev.ItemName, "Unknown")
			checkStringEqual(t, "ItemType", ev.ItemType, "Unknown")
		})
	}
}

func TestEventFromPlaybackStart(t *testing.T) {
	start := &models.JellyfinPlaybackStart{
		SessionID:  "s9",
		UserID:     "u2",
		Username:   "bob",
		DeviceID:   "dev-2",
		DeviceName: "Phone",
		Client:     "Android",
		Item:       &models.JellyfinNowPlayingItem{ID: "mv-1", Name: "Film", Type: "Movie"},
		PlayState:  &models.JellyfinPlayState{PositionTicks: ptr(int64(99 * models.TicksPerSecond)), IsPaused: ptr(true)},
	}

	ev, ok := EventFromPlaybackStart(start)
	if !ok {
		t.Fatal("EventFromPlaybackStart() ok = false")
	}
	checkStringEqual(t, "SessionID", ev.SessionID, "s9")
	checkStringEqual(t, "UserName", ev.UserName, "bob")
	checkStringEqual(t, "ItemID", ev.ItemID, "mv-1")
	// Start events always open at the beginning, unpaused.
	checkInt64Equal(t, "PositionSeconds", ev.PositionSeconds, 0)
	checkTrue(t, "not paused", !ev.IsPaused)
	if ev.SeriesName != nil {
		t.Errorf("SeriesName = %q, want nil", *ev.SeriesName)
	}

	if _, ok := EventFromPlaybackStart(&models.JellyfinPlaybackStart{SessionID: "s9"}); ok {
		t.Error("start without item should be ignored")
	}
	if _, ok := EventFromPlaybackStart(nil); ok {
		t.Error("nil start should be ignored")
	}
}
