// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/validation"
)

// ErrMissingAPIKey is returned when JELLYFIN_API_KEY is empty.
var ErrMissingAPIKey = errors.New("JELLYFIN_API_KEY is not set")

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Jellyfin.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if err := validateHTTPURL(c.Jellyfin.URL, "JELLYFIN_URL"); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	return nil
}

// validateHTTPURL accepts http/https base URLs with a host.
// A path is allowed for servers mounted under a prefix; query strings are not.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", fieldName)
	}
	return nil
}
