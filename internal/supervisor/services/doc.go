// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package services adapts jellytrack components that do not implement
// suture.Service directly.
//
// Components with a blocking Serve(ctx) error method (the Tracker, the
// Reaper, the event Dispatcher) are added to the tree as they are. The
// wrappers here cover the two other lifecycles in the codebase:
//
//   - HTTPServerService: ListenAndServe/Shutdown of *http.Server
//   - AggregatorService: Start/Stop/IsRunning of retention.Aggregator
package services
