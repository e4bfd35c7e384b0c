// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package config

import (
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Jellyfin  JellyfinConfig  `koanf:"jellyfin"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Retention RetentionConfig `koanf:"retention"`
	Import    ImportConfig    `koanf:"import"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// JellyfinConfig holds the upstream server connection settings.
type JellyfinConfig struct {
	URL            string        `koanf:"url"`
	APIKey         string        `koanf:"api_key"`
	DeviceID       string        `koanf:"device_id" validate:"required,max=64"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	// RequestsPerSecond limits REST calls (catch-up refresh, user lookups).
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
}

// BaseURL returns URL without trailing slashes.
func (c *JellyfinConfig) BaseURL() string {
	return strings.TrimRight(c.URL, "/")
}

// WebSocketURL derives the /socket endpoint: http becomes ws and https
// becomes wss. The API key and device id travel as query parameters.
func (c *JellyfinConfig) WebSocketURL() string {
	base := c.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("api_key", c.APIKey)
	if c.DeviceID != "" {
		q.Set("deviceId", c.DeviceID)
	}
	return base + "/socket?" + q.Encode()
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = engine default
}

// ServerConfig holds the HTTP listener for health and metrics.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// TrackingConfig holds reconciliation settings.
type TrackingConfig struct {
	SessionTimeoutMinutes int           `koanf:"session_timeout_minutes" validate:"min=1"`
	ReapInterval          time.Duration `koanf:"reap_interval" validate:"gt=0"`
	ExcludedUserNames     []string      `koanf:"excluded_user_names"`
}

// SessionTimeout is the idle window after which the reaper ends a session.
func (c *TrackingConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// RetentionConfig controls compaction of aged sessions into aggregates.
type RetentionConfig struct {
	// RetentionDays is the raw-row lifetime. 0 disables compaction.
	RetentionDays            int `koanf:"retention_days" validate:"min=0"`
	AggregationIntervalHours int `koanf:"aggregation_interval_hours" validate:"min=1"`
}

// Interval is the time between compaction runs.
func (c *RetentionConfig) Interval() time.Duration {
	return time.Duration(c.AggregationIntervalHours) * time.Hour
}

// Enabled reports whether compaction should run at all.
func (c *RetentionConfig) Enabled() bool {
	return c.RetentionDays > 0
}

// ImportConfig holds Playback Reporting import settings.
type ImportConfig struct {
	DefaultDays  int           `koanf:"default_days" validate:"min=1"`
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the
// environment. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
