// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package api exposes the read-only HTTP surface of jellytrack.

Routes:

	GET /health                  process, database and upstream WebSocket status
	GET /metrics                 Prometheus exposition
	GET /api/v1/sessions/active  active sessions, optionally filtered

The sessions endpoint accepts user_id, device_name and media_type query
parameters. Sessions of users listed in tracking.excluded_user_names are
hidden from the listing but still tracked in the store.

Responses of /api/v1 use the models.APIResponse envelope. /health returns a
bare models.HealthStatus so that simple probes can match on "status":"ok".

Active-session listings are cached per filter for a few seconds. The cache is
cleared whenever the event bus publishes a SessionsUpdated notification, see
Handler.InvalidateCache.

Middleware stack (all routes):

  - RequestIDWithLogging: X-Request-ID plus request and correlation ids in
    the logging context
  - chi RealIP and Recoverer
  - go-chi/cors with an explicit origin list
  - go-chi/httprate per-IP limits, stricter on /api/v1 than on /health
*/
package api
