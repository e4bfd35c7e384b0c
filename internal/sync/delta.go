// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import "time"

const (
	// DeltaElapsedCap bounds the wall-clock gap credited to one observation.
	DeltaElapsedCap = 300 * time.Second
	// DeltaTolerance is how far the playhead may outrun wall-clock time.
	DeltaTolerance = 10 * time.Second
)

// ComputeDeltas returns the seconds to add to the play and paused
// accumulators between the stored observation and a new one.
//
// Elapsed wall-clock time is clamped to [0, DeltaElapsedCap]. When the
// session was paused at the last observation the whole elapsed time counts
// as paused, whatever the new state. Otherwise play time is the forward
// playhead movement, clamped to [0, elapsed + DeltaTolerance]. newPaused
// does not affect the result: a transition is accounted on the next
// observation.
func ComputeDeltas(lastUpdate time.Time, lastPosition int64, lastPaused bool, now time.Time, newPosition int64, newPaused bool) (playAdd, pausedAdd int64) {
	elapsed := int64(now.Sub(lastUpdate) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if limit := int64(DeltaElapsedCap / time.Second); elapsed > limit {
		elapsed = limit
	}

	if lastPaused {
		return 0, elapsed
	}

	playAdd = newPosition - lastPosition
	if playAdd < 0 {
		playAdd = 0
	}
	if limit := elapsed + int64(DeltaTolerance/time.Second); playAdd > limit {
		playAdd = limit
	}
	return playAdd, 0
}
