// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package metrics provides Prometheus metrics for the tracker.

Event-driven counters are package-level promauto collectors updated through
the Record* helpers. Point-in-time values (active sessions, total sessions,
WebSocket state) are read at scrape time by StatusCollector, so they never
go stale between reconciler ticks.

# Metrics Endpoint

	curl http://localhost:8085/metrics

# Available Metrics

Scrape-time gauges:
  - jellytrack_active_sessions
  - jellytrack_total_sessions
  - jellytrack_ws_connected
  - jellytrack_last_ws_message_timestamp

Counters:
  - jellytrack_sessions_started_total
  - jellytrack_sessions_ended_total{reason}
  - jellytrack_compaction_runs_total{result}
  - jellytrack_compacted_sessions_total
  - jellytrack_ws_reconnects_total
  - jellytrack_ws_messages_total{type}
  - jellytrack_api_requests_total{method,endpoint,status}

Other:
  - jellytrack_circuit_breaker_state{name} (0 closed, 1 half-open, 2 open)
  - jellytrack_circuit_breaker_requests_total{name,result}
  - jellytrack_api_request_duration_seconds{method,endpoint}
*/
package metrics
