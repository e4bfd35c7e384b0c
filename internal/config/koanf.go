// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/jellytrack/config.yaml",
	"/etc/jellytrack/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and
// overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Jellyfin: JellyfinConfig{
			URL:               "http://localhost:8096",
			APIKey:            "",
			DeviceID:          "jellytrack",
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 5,
		},
		Database: DatabaseConfig{
			Path:      "./data/jellytrack.duckdb",
			MaxMemory: "512MB",
			Threads:   0,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8085,
			Timeout: 30 * time.Second,
		},
		Tracking: TrackingConfig{
			SessionTimeoutMinutes: 5,
			ReapInterval:          60 * time.Second,
			ExcludedUserNames:     []string{},
		},
		Retention: RetentionConfig{
			RetentionDays:            180,
			AggregationIntervalHours: 24,
		},
		Import: ImportConfig{
			DefaultDays:  365,
			QueryTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// sliceConfigPaths are keys that accept a comma-separated string from the
// environment.
var sliceConfigPaths = []string{
	"tracking.excluded_user_names",
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"jellyfin_url":                 "jellyfin.url",
	"jellyfin_api_key":             "jellyfin.api_key",
	"jellyfin_device_id":           "jellyfin.device_id",
	"jellyfin_request_timeout":     "jellyfin.request_timeout",
	"jellyfin_requests_per_second": "jellyfin.requests_per_second",

	"database_path":     "database.path",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"http_host":      "server.host",
	"http_port":      "server.port",
	"dashboard_port": "server.port",
	"http_timeout":   "server.timeout",

	"session_timeout_minutes": "tracking.session_timeout_minutes",
	"reap_interval":           "tracking.reap_interval",
	"excluded_user_names":     "tracking.excluded_user_names",

	"retention_days":             "retention.retention_days",
	"aggregation_interval_hours": "retention.aggregation_interval_hours",

	"import_default_days":  "import.default_days",
	"import_query_timeout": "import.query_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// LoadWithKoanf loads and validates configuration.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields splits comma-separated strings coming from the
// environment. Values that are already lists (YAML) are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to a koanf path.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
