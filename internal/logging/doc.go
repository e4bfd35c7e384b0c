// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package logging provides the zerolog-based structured logger used across
// jellytrack.
//
// A single global logger is configured once from main and accessed through
// package-level helpers, so the reconciler, the store and the background jobs
// all share the same sink and field names.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("session_id", id).Msg("Session started")
//	logging.Error().Err(err).Msg("Compaction failed")
//
//	// Correlation ids follow a connection attempt or an import run
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("Connected to Jellyfin WebSocket")
//
// # Supervisor Integration
//
// Suture reports its events through log/slog. NewSlogLogger returns a
// *slog.Logger whose handler forwards every record to zerolog, which is what
// the supervisor tree hands to sutureslog.
//
// # Secrets
//
// The Jellyfin API key travels as a query parameter on WebSocket and REST
// URLs. Use RedactURL before logging any URL and SanitizeToken for raw keys.
package logging
