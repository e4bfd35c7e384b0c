// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package sync turns the Jellyfin event stream into session lifecycles.

Key Components:

  - ComputeDeltas: pure play/pause accounting between two observations
  - Reconciler: maps snapshots and start/stop events onto store operations,
    finalizing sessions that disappear from a snapshot
  - JellyfinClient: REST client (GET /Sessions, GET /Users, Playback
    Reporting custom queries) with a request rate limiter
  - CircuitBreakerClient: gobreaker wrapper around JellyfinClient
  - WebSocketClient: /socket connection with SessionsStart subscription,
    keep-alives and capped exponential reconnect backoff
  - Reaper: periodic force-end of sessions whose progress stopped arriving
  - Tracker: glues the WebSocket client to the Reconciler and runs the REST
    catch-up after every (re)connect

Session Lifecycle:

A session id moves unknown -> active on the first snapshot entry or
PlaybackStart carrying a now-playing item, stays active while snapshots keep
reporting it, and becomes finalized on PlaybackStopped, on disappearing from
a snapshot, or when the Reaper times it out. A finalized id seen again starts
a new lifecycle with fresh accumulators.

Every state change is a single conditional statement in the store guarded by
is_active, so the Reconciler and Reaper can race without resurrecting a
finalized session.
*/
package sync
