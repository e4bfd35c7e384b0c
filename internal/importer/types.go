// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package importer

import "time"

// Result summarizes one import run.
type Result struct {
	// Total is the number of rows returned by the plugin.
	Total int

	// Imported is the number of sessions written.
	Imported int

	// Skipped is the number of rows whose session already existed.
	Skipped int

	// Failed is the number of rows that could not be parsed or stored.
	Failed int

	StartTime time.Time
	EndTime   time.Time
}

// Processed returns the number of rows handled so far.
func (r *Result) Processed() int {
	return r.Imported + r.Skipped + r.Failed
}

// Duration returns how long the import ran.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Progress returns the share of processed rows as a percentage (0-100).
func (r *Result) Progress() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Processed()) / float64(r.Total) * 100
}

// RecordsPerSecond returns the processing rate.
func (r *Result) RecordsPerSecond() float64 {
	d := r.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(r.Processed()) / d
}
