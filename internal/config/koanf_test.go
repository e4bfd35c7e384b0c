// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// chdirTemp moves the test into an empty directory so no stray config.yaml
// is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Jellyfin.URL != "http://localhost:8096" {
		t.Errorf("Jellyfin.URL = %q, want http://localhost:8096", cfg.Jellyfin.URL)
	}
	if cfg.Jellyfin.APIKey != "" {
		t.Errorf("Jellyfin.APIKey should be empty by default, got %q", cfg.Jellyfin.APIKey)
	}
	if cfg.Server.Port != 8085 {
		t.Errorf("Server.Port = %d, want 8085", cfg.Server.Port)
	}
	if cfg.Tracking.SessionTimeoutMinutes != 5 {
		t.Errorf("SessionTimeoutMinutes = %d, want 5", cfg.Tracking.SessionTimeoutMinutes)
	}
	if cfg.Tracking.ReapInterval != time.Minute {
		t.Errorf("ReapInterval = %v, want 1m", cfg.Tracking.ReapInterval)
	}
	if cfg.Retention.RetentionDays != 180 {
		t.Errorf("RetentionDays = %d, want 180", cfg.Retention.RetentionDays)
	}
	if cfg.Retention.AggregationIntervalHours != 24 {
		t.Errorf("AggregationIntervalHours = %d, want 24", cfg.Retention.AggregationIntervalHours)
	}
	if cfg.Import.DefaultDays != 365 {
		t.Errorf("Import.DefaultDays = %d, want 365", cfg.Import.DefaultDays)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"JELLYFIN_URL", "jellyfin.url"},
		{"JELLYFIN_API_KEY", "jellyfin.api_key"},
		{"DATABASE_PATH", "database.path"},
		{"DUCKDB_PATH", "database.path"},
		{"DASHBOARD_PORT", "server.port"},
		{"SESSION_TIMEOUT_MINUTES", "tracking.session_timeout_minutes"},
		{"EXCLUDED_USER_NAMES", "tracking.excluded_user_names"},
		{"RETENTION_DAYS", "retention.retention_days"},
		{"AGGREGATION_INTERVAL_HOURS", "retention.aggregation_interval_hours"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv(ConfigPathEnvVar, "")

	t.Run("no config file exists", func(t *testing.T) {
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := findConfigFile(); got != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", got)
		}
	})

	t.Run("CONFIG_PATH wins", func(t *testing.T) {
		custom := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(custom, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, custom)
		if got := findConfigFile(); got != custom {
			t.Errorf("findConfigFile() = %q, want %q", got, custom)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JELLYFIN_URL", "https://jf.example.net")
	t.Setenv("JELLYFIN_API_KEY", "abcdef0123456789")
	t.Setenv("DASHBOARD_PORT", "9000")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "10")
	t.Setenv("EXCLUDED_USER_NAMES", "kiosk, test ,")
	t.Setenv("RETENTION_DAYS", "0")
	t.Setenv("REAP_INTERVAL", "30s")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Jellyfin.URL != "https://jf.example.net" {
		t.Errorf("Jellyfin.URL = %q", cfg.Jellyfin.URL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Tracking.SessionTimeout() != 10*time.Minute {
		t.Errorf("SessionTimeout() = %v, want 10m", cfg.Tracking.SessionTimeout())
	}
	if cfg.Tracking.ReapInterval != 30*time.Second {
		t.Errorf("ReapInterval = %v, want 30s", cfg.Tracking.ReapInterval)
	}
	if want := []string{"kiosk", "test"}; !reflect.DeepEqual(cfg.Tracking.ExcludedUserNames, want) {
		t.Errorf("ExcludedUserNames = %v, want %v", cfg.Tracking.ExcludedUserNames, want)
	}
	if cfg.Retention.Enabled() {
		t.Error("RETENTION_DAYS=0 should disable compaction")
	}
	if cfg.Database.Path != "./data/jellytrack.duckdb" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("JELLYFIN_API_KEY", "")

	content := `
jellyfin:
  url: http://jellyfin:8096
  api_key: from-file-key-1234
database:
  path: /var/lib/jellytrack/db.duckdb
tracking:
  excluded_user_names:
    - kiosk
retention:
  retention_days: 90
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	os.Unsetenv("JELLYFIN_API_KEY")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Jellyfin.APIKey != "from-file-key-1234" {
		t.Errorf("APIKey = %q", cfg.Jellyfin.APIKey)
	}
	if cfg.Database.Path != "/var/lib/jellytrack/db.duckdb" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Retention.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.Retention.RetentionDays)
	}
	if len(cfg.Tracking.ExcludedUserNames) != 1 || cfg.Tracking.ExcludedUserNames[0] != "kiosk" {
		t.Errorf("ExcludedUserNames = %v", cfg.Tracking.ExcludedUserNames)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("jellyfin:\n  api_key: file-key-00000000\nserver:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("DASHBOARD_PORT", "7100")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 from env", cfg.Server.Port)
	}
}

func TestLoadWithKoanfMissingAPIKey(t *testing.T) {
	chdirTemp(t)
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JELLYFIN_API_KEY", "")

	_, err := LoadWithKoanf()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("LoadWithKoanf() error = %v, want ErrMissingAPIKey", err)
	}
}
