// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package logging

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters stripped by RedactURL.
var sensitiveParams = []string{"api_key", "apikey", "token", "x-emby-token"}

// SanitizeToken masks a secret, keeping the first and last 4 characters.
// Short values are fully masked.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactURL masks credentials carried in the query string of rawURL.
// Unparseable input is returned with everything after '?' removed.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, p := range sensitiveParams {
			if strings.EqualFold(key, p) {
				q.Set(key, "REDACTED")
				changed = true
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	u.User = nil
	return u.String()
}

// Truncate shortens s to maxLen bytes, appending "..." when cut.
// Used to log the head of malformed upstream messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
