// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package cache

import (
	"testing"
	"time"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestCache(ttl time.Duration) (*Cache, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl)
	c.SetClock(clock.Now)
	return c, clock
}

func TestCache_GetSetExpire(t *testing.T) {
	c, clock := newTestCache(5 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("Get on empty cache returned a value")
	}
	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get() = %v, %v; want 42, true", v, ok)
	}

	clock.now = clock.now.Add(5 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire at its TTL")
	}

	s := c.GetStats()
	if s.Hits != 1 || s.Misses != 2 || s.Evictions != 1 || s.TotalKeys != 0 {
		t.Errorf("stats = %+v", s)
	}
	if got := c.HitRate(); got < 33.3 || got > 33.4 {
		t.Errorf("HitRate() = %v, want ~33.3", got)
	}
}

func TestCache_ClearDeleteCleanup(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.SetWithTTL("short", 3, time.Second)

	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}

	clock.now = clock.now.Add(2 * time.Second)
	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unexpired key removed by Cleanup")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("Clear left entries behind")
	}
	if s := c.GetStats(); s.TotalKeys != 0 || s.Evictions != 3 {
		t.Errorf("stats = %+v, want 0 keys and 3 evictions", s)
	}
}

func TestGenerateKey(t *testing.T) {
	type params struct{ User, Device string }
	a := GenerateKey("active", params{"u1", "tv"})
	b := GenerateKey("active", params{"u1", "tv"})
	c := GenerateKey("active", params{"u2", "tv"})
	if a != b {
		t.Error("same params produced different keys")
	}
	if a == c {
		t.Error("different params produced the same key")
	}
}
