// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Command jellytrack tracks Jellyfin playback sessions into DuckDB.

Usage:

	jellytrack [serve]          run the tracker (default)
	jellytrack import --days N  import N days of Playback Reporting history and exit

Both commands read configuration from built-in defaults, an optional YAML
file (--config or CONFIG_PATH) and environment variables, highest last:

	JELLYFIN_URL=http://jellyfin:8096
	JELLYFIN_API_KEY=...            required
	DATABASE_PATH=/data/jellytrack.duckdb
	SESSION_TIMEOUT_MINUTES=30
	RETENTION_DAYS=90
	EXCLUDED_USER_NAMES=kiosk,guest

# Serve

serve opens the database and starts the supervisor tree:

	data-layer       retention aggregator, stale-session reaper
	messaging-layer  Jellyfin tracker (WebSocket + reconciler), event dispatcher
	api-layer        HTTP server: /health, /metrics, /api/v1/sessions/active

SIGINT and SIGTERM cancel the root context. Services stop within the
supervisor shutdown timeout, the HTTP server drains for up to 10s, and the
database is checkpointed and closed last.

# Import

import runs one Playback Reporting import through the circuit-breaker
protected REST client and prints imported, skipped and failed counts.
Re-running an import skips rows that are already present.
*/
package main
