// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package database is the DuckDB-backed session store for Jellytrack.
//
// # Overview
//
// The store holds one row per playback session in the sessions table and
// rolled-up hourly buckets in session_aggregates. Every operation is a single
// statement except Compact, which moves aged sessions into buckets inside one
// transaction.
//
// # Files
//
//   - database.go: lifecycle (open, pool configuration, checkpoint on close)
//   - database_schema.go: table definitions
//   - migrations.go: versioned schema_migrations bookkeeping
//   - crud_sessions.go: upsert, delta application, finalization, reads
//   - reap.go: bulk close of sessions whose progress stopped arriving
//   - compact.go: aggregation of finalized sessions into hourly buckets
//   - filter.go: WHERE clause construction for session reads
//
// # Time
//
// All timestamps are stored as UTC TIMESTAMP values. Aggregate buckets are
// keyed on the UTC date and hour of started_at.
//
// # Concurrency
//
// DB is safe for concurrent use. Writes that lose a DuckDB optimistic
// concurrency check are retried a small number of times before the
// conflict error is returned to the caller.
package database
