// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package database

import (
	"context"
	"fmt"
	"time"
)

// ReapStale ends every active session whose last progress update is older
// than timeout. ended_at is set to the last progress update, not to now, so
// idle time after the final report is not counted. Returns the number of
// sessions closed.
func (db *DB) ReapStale(ctx context.Context, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		return 0, fmt.Errorf("reap stale: timeout must be positive, got %s", timeout)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := db.now().UTC().Add(-timeout)
	res, err := db.execWithRetry(ctx, `
		UPDATE sessions SET
			ended_at = last_progress_update,
			is_active = FALSE
		WHERE is_active = TRUE AND last_progress_update < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reap stale sessions: %w", err)
	}
	return res.RowsAffected()
}
