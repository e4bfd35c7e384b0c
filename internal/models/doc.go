// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package models defines the data structures shared by the store, the
// reconciler, the importer and the HTTP surface.
//
// Three groups of types live here:
//
//   - Persisted records: Session (one playback lifecycle) and AggregateBucket
//     (hourly rollup produced by compaction).
//   - PlaybackEvent, the single normalized record the reconciler consumes no
//     matter which upstream message shape produced it.
//   - Jellyfin wire types decoded from the WebSocket and REST APIs. Optional
//     upstream fields are pointers so that absent and zero are distinguishable.
package models
