// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package cache provides a small thread-safe TTL cache for API responses.

The HTTP layer caches active-session listings keyed by their filter and
clears the whole cache whenever the event bus reports that sessions
changed, so the TTL only bounds staleness when a notification is missed.

Expired entries are dropped lazily on Get and in bulk by Cleanup.

Example:

	c := cache.New(5 * time.Second)
	key := cache.GenerateKey("active", filter)
	if v, ok := c.Get(key); ok {
	    return v.([]models.Session)
	}
	c.Set(key, sessions)
*/
package cache
