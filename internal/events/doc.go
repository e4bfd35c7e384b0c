// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package events carries the in-process "sessions changed" notification.
//
// The reconciler and reaper publish a SessionsUpdated message after every
// operation that changed session state. Consumers (the HTTP layer's active
// sessions cache, debug logging) register handlers on a Dispatcher, which
// runs as a supervised service draining a watermill Go-channel subscription.
//
// Publishing never blocks the caller on slow consumers and never fails the
// caller's operation; delivery is best effort.
package events
