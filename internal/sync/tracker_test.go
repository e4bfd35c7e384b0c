// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/models"
)

func TestNewTracker_Validation(t *testing.T) {
	if _, err := NewTracker(TrackerConfig{WebSocketURL: "ws://x"}); err == nil {
		t.Error("expected error without reconciler")
	}
	r, _, _, _ := newTestReconciler()
	if _, err := NewTracker(TrackerConfig{Reconciler: r}); err == nil {
		t.Error("expected error without url")
	}
}

// A session active before the outage and missing from the catch-up fetch
// is finalized; one still playing continues with a delta.
func TestTracker_CatchUpOnConnect(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("gone", 0, false), playing("s1", 0, false)})
	clock.Set(t0.Add(20 * time.Second))

	reaper := NewReaper(&stubReapStore{}, nil, time.Minute, time.Hour)
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go func() { _ = reaper.Serve(reaperCtx) }()

	mock := newMockJellyfinSocket(t)
	tracker, err := NewTracker(TrackerConfig{
		WebSocketURL: mock.url("test-api-key"),
		Reconciler:   r,
		API:          &stubAPI{},
		Reaper:       reaper,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- tracker.Serve(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	conn := mock.accept(t)
	_ = readMessage(t, conn)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.GetActive(ctx, "gone"); errors.Is(err, database.ErrSessionNotFound) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	checkTrue(t, "gone finalized", !store.get(t, "gone").IsActive)
	s1 := store.get(t, "s1")
	checkTrue(t, "s1 still active", s1.IsActive)
	checkTrue(t, "s1 progressed", s1.LastProgressUpdate.Equal(t0.Add(20*time.Second)))
	checkTrue(t, "client connected", tracker.Client().Connected())
}

func TestTracker_CatchUpErrorDoesNotDropConnection(t *testing.T) {
	r, _, _, _ := newTestReconciler()
	tracker, err := NewTracker(TrackerConfig{
		WebSocketURL: "ws://unused",
		Reconciler:   r,
		API:          &stubAPI{err: errors.New("503")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := tracker.catchUp(context.Background()); err == nil {
		t.Error("catchUp() should report the fetch error")
	}

	noAPI, _ := NewTracker(TrackerConfig{WebSocketURL: "ws://unused", Reconciler: r})
	if err := noAPI.catchUp(context.Background()); err != nil {
		t.Errorf("catchUp() without API = %v", err)
	}
}
