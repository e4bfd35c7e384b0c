// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package importer loads historical playback from the Jellyfin Playback
Reporting plugin into the session store.

# Source

The plugin exposes its SQLite table through a custom query endpoint:

	POST /user_usage_stats/submit_custom_query
	{"CustomQueryString": "SELECT rowid, DateCreated, ... FROM PlaybackActivity ..."}

The reply is tabular: a column list (spelled "columns" or, by some plugin
versions, "colums") and rows of positional values. Rows are mapped by
column name, so extra or reordered columns are harmless. A reply without
a column list fails with ErrMissingColumns.

# Mapping

Every row becomes one finalized session:

  - session_id is "imported_<rowid>", or "imported_<sha1>" of all row
    values joined by "|" when rowid is absent.
  - started_at, ended_at and last_progress_update all come from
    DateCreated. Accepted forms are RFC 3339 ("2024-01-02T03:04:05Z"),
    "2024-01-02 03:04:05.123" and "2024-01-02 03:04:05". Values without a
    zone are UTC.
  - play_duration_seconds is PlayDuration, given as a number or numeric
    string. Paused time is not recorded by the plugin and stays 0.
  - user_name is resolved from GET /Users; unknown ids become "Unknown".
  - device_id is "imported_" + DeviceName.
  - Titles shaped like "Series - s01e02 - Episode" are split into series,
    season, episode and title. Other titles are kept verbatim.

# Idempotence

Each derived id is looked up before insert and existing rows are
skipped, so overlapping imports never duplicate sessions. Rows that fail
to parse or store are counted as failed and the import continues.
*/
package importer
