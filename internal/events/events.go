// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package events

import (
	"time"

	"github.com/goccy/go-json"
)

// TopicSessionsUpdated is the topic for session state changes.
const TopicSessionsUpdated = "jellytrack.sessions.updated"

// Reasons carried in SessionsUpdated.
const (
	ReasonSnapshot = "snapshot"
	ReasonStopped  = "stopped"
	ReasonReaped   = "reaped"
)

// SessionsUpdated notifies that session rows changed.
type SessionsUpdated struct {
	Reason string    `json:"reason"`
	Count  int64     `json:"count,omitempty"`
	At     time.Time `json:"at"`
}

func (e SessionsUpdated) marshal() ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalSessionsUpdated(data []byte) (SessionsUpdated, error) {
	var e SessionsUpdated
	err := json.Unmarshal(data, &e)
	return e, err
}
