// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

// Package config loads jellytrack configuration with Koanf v2.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
//     /etc/jellytrack/config.yaml
//  3. Environment variables, mapped explicitly by envTransformFunc
//
// Environment variables keep the names of the original .env file
// (JELLYFIN_URL, JELLYFIN_API_KEY, DATABASE_PATH, DASHBOARD_PORT,
// SESSION_TIMEOUT_MINUTES, RETENTION_DAYS, AGGREGATION_INTERVAL_HOURS,
// EXCLUDED_USER_NAMES). Unmapped variables are ignored.
//
// Example config.yaml:
//
//	jellyfin:
//	  url: http://jellyfin:8096
//	  api_key: 0123456789abcdef
//	tracking:
//	  session_timeout_minutes: 5
//	  excluded_user_names: [kiosk, test]
//	retention:
//	  retention_days: 180
//	  aggregation_interval_hours: 24
//
// The only fatal problem is a missing API key (ErrMissingAPIKey); main
// refuses to start without it.
package config
