// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package models

import "github.com/goccy/go-json"

// TicksPerSecond is the Jellyfin time unit: positions are 100ns ticks.
const TicksPerSecond int64 = 10_000_000

// Jellyfin WebSocket message types handled or acknowledged by the tracker.
const (
	MessageTypeSessions         = "Sessions"
	MessageTypeSessionsStart    = "SessionsStart"
	MessageTypePlaybackStart    = "PlaybackStart"
	MessageTypePlaybackStopped  = "PlaybackStopped"
	MessageTypePlaybackProgress = "PlaybackProgress"
	MessageTypeKeepAlive        = "KeepAlive"
	MessageTypeForceKeepAlive   = "ForceKeepAlive"
)

// TicksToSeconds converts a nullable tick count to whole seconds.
// A nil or negative value counts as position 0.
func TicksToSeconds(ticks *int64) int64 {
	if ticks == nil || *ticks < 0 {
		return 0
	}
	return *ticks / TicksPerSecond
}

// JellyfinWSMessage is the envelope of every WebSocket frame.
type JellyfinWSMessage struct {
	MessageType string          `json:"MessageType"`
	MessageID   string          `json:"MessageId,omitempty"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// JellyfinSession is one entry of a Sessions snapshot or GET /Sessions.
type JellyfinSession struct {
	ID         string `json:"Id"`
	Client     string `json:"Client"`
	DeviceID   string `json:"DeviceId"`
	DeviceName string `json:"DeviceName"`
	UserID     string `json:"UserId"`
	UserName   string `json:"UserName"`

	NowPlayingItem *JellyfinNowPlayingItem `json:"NowPlayingItem,omitempty"`
	PlayState      *JellyfinPlayState      `json:"PlayState,omitempty"`
}

// JellyfinNowPlayingItem is the subject being played.
type JellyfinNowPlayingItem struct {
	ID                string  `json:"Id"`
	Name              string  `json:"Name"`
	Type              string  `json:"Type"`
	SeriesName        *string `json:"SeriesName,omitempty"`
	IndexNumber       *int    `json:"IndexNumber,omitempty"`       // episode
	ParentIndexNumber *int    `json:"ParentIndexNumber,omitempty"` // season
	RunTimeTicks      *int64  `json:"RunTimeTicks,omitempty"`
}

// JellyfinPlayState is the player state. Both fields may be null upstream.
type JellyfinPlayState struct {
	PositionTicks *int64 `json:"PositionTicks"`
	IsPaused      *bool  `json:"IsPaused"`
}

// Position returns the playhead in seconds, 0 when unknown.
func (p *JellyfinPlayState) Position() int64 {
	if p == nil {
		return 0
	}
	return TicksToSeconds(p.PositionTicks)
}

// Paused reports the paused flag, false when unknown.
func (p *JellyfinPlayState) Paused() bool {
	return p != nil && p.IsPaused != nil && *p.IsPaused
}

// JellyfinPlaybackStart is the Data of a PlaybackStart message. Actor and
// endpoint sit at the top level; the subject is nested under Item.
type JellyfinPlaybackStart struct {
	SessionID  string                  `json:"SessionId"`
	UserID     string                  `json:"UserId"`
	Username   string                  `json:"Username"`
	DeviceID   string                  `json:"DeviceId"`
	DeviceName string                  `json:"DeviceName"`
	Client     string                  `json:"Client"`
	Item       *JellyfinNowPlayingItem `json:"Item,omitempty"`
	PlayState  *JellyfinPlayState      `json:"PlayState,omitempty"`
}

// JellyfinPlaybackStopped is the Data of a PlaybackStopped message.
type JellyfinPlaybackStopped struct {
	SessionID string             `json:"SessionId"`
	PlayState *JellyfinPlayState `json:"PlayState,omitempty"`
}

// JellyfinUser is one entry of GET /Users.
type JellyfinUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// CustomQueryRequest is the body of a Playback Reporting custom query.
type CustomQueryRequest struct {
	CustomQueryString string `json:"CustomQueryString"`
}

// CustomQueryResult is the tabular reply of the Playback Reporting plugin.
// Some plugin versions spell the column list "colums".
type CustomQueryResult struct {
	Columns   []string `json:"columns"`
	ColumsAlt []string `json:"colums"`
	Results   [][]any  `json:"results"`
}

// ColumnNames returns whichever column list the plugin sent.
func (r *CustomQueryResult) ColumnNames() []string {
	if len(r.Columns) > 0 {
		return r.Columns
	}
	return r.ColumsAlt
}
