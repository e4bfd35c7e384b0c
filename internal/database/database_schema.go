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

// schemaContext bounds DDL at startup.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// Only primary keys are indexed. DuckDB rewrites an UPDATE touching an
// ART-indexed column as delete plus insert, and the session upsert rewrites
// most columns; range scans on started_at are served by zone maps.
const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	user_name TEXT,
	device_id TEXT NOT NULL DEFAULT '',
	device_name TEXT NOT NULL DEFAULT '',
	client_name TEXT NOT NULL DEFAULT '',
	media_id TEXT NOT NULL DEFAULT '',
	media_title TEXT,
	media_type TEXT,
	series_name TEXT,
	season_number INTEGER,
	episode_number INTEGER,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	play_duration_seconds BIGINT NOT NULL DEFAULT 0,
	paused_duration_seconds BIGINT DEFAULT 0,
	last_position_seconds BIGINT DEFAULT 0,
	last_state_is_paused BOOLEAN DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_progress_update TIMESTAMP NOT NULL
);
`

const createAggregatesTable = `
CREATE TABLE IF NOT EXISTS session_aggregates (
	bucket_date TEXT NOT NULL,
	bucket_hour INTEGER NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	user_name TEXT,
	media_id TEXT NOT NULL DEFAULT '',
	media_title TEXT,
	media_type TEXT,
	series_name TEXT,
	device_name TEXT NOT NULL DEFAULT '',
	client_name TEXT NOT NULL DEFAULT '',
	session_count BIGINT NOT NULL DEFAULT 0,
	play_seconds BIGINT NOT NULL DEFAULT 0,
	paused_seconds BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (bucket_date, bucket_hour, user_id, media_id, device_name, client_name)
);
`

// createTables creates the current schema. Older database files are brought
// forward by migrations.go.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for name, ddl := range map[string]string{
		"sessions":           createSessionsTable,
		"session_aggregates": createAggregatesTable,
	} {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", name, err)
		}
	}
	return nil
}
