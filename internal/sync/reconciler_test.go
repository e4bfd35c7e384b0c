// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"errors"
	"sort"
	stdsync "sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/models"
)

// memStore mirrors the conditional-write semantics of the DuckDB store.
type memStore struct {
	mu       stdsync.Mutex
	sessions map[string]*models.Session
	failList error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*models.Session)}
}

func (m *memStore) UpsertSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memStore) ApplyDelta(_ context.Context, p models.SessionProgress) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[p.SessionID]
	if !ok || !s.IsActive {
		return 0, nil
	}
	s.PlayDurationSeconds += p.PlayAdd
	s.PausedDurationSeconds += p.PausedAdd
	s.LastPositionSeconds = p.PositionSeconds
	s.LastStateIsPaused = p.IsPaused
	if p.At.After(s.LastProgressUpdate) {
		s.LastProgressUpdate = p.At
	}
	return 1, nil
}

func (m *memStore) Finalize(_ context.Context, id string, endedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return 0, nil
	}
	if endedAt.Before(s.StartedAt) {
		endedAt = s.StartedAt
	}
	s.IsActive = false
	s.EndedAt = &endedAt
	return 1, nil
}

func (m *memStore) GetActive(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return nil, database.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListActive(_ context.Context, _ models.SessionFilter) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.Session
	for _, s := range m.sessions {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *memStore) get(t *testing.T, id string) models.Session {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		t.Fatalf("session %q not stored", id)
	}
	return *s
}

type recordedNotice struct {
	reason string
	count  int64
}

type recordingNotifier struct {
	mu      stdsync.Mutex
	notices []recordedNotice
}

func (n *recordingNotifier) NotifySessionsUpdated(_ context.Context, reason string, count int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{reason, count})
}

func (n *recordingNotifier) last() (recordedNotice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return recordedNotice{}, false
	}
	return n.notices[len(n.notices)-1], true
}

// fakeClock is advanced explicitly by tests.
type fakeClock struct {
	mu  stdsync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func playing(id string, positionSec int64, paused bool) models.JellyfinSession {
	ticks := positionSec * models.TicksPerSecond
	return models.JellyfinSession{
		ID:         id,
		Client:     "Jellyfin Web",
		DeviceID:   "dev-" + id,
		DeviceName: "TV",
		UserID:     "u1",
		UserName:   "alice",
		NowPlayingItem: &models.JellyfinNowPlayingItem{
			ID:   "movie-1",
			Name: "Film",
			Type: "Movie",
		},
		PlayState: &models.JellyfinPlayState{PositionTicks: &ticks, IsPaused: &paused},
	}
}

func newTestReconciler() (*Reconciler, *memStore, *recordingNotifier, *fakeClock) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: t0}
	r := NewReconciler(store, notifier)
	r.SetClock(clock.Now)
	return r, store, notifier, clock
}

func TestReconciler_EndToEndScenario(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	steps := []struct {
		at       time.Duration
		sessions []models.JellyfinSession
	}{
		{0, []models.JellyfinSession{playing("s1", 0, false)}},
		{10 * time.Second, []models.JellyfinSession{playing("s1", 10, false)}},
		{20 * time.Second, []models.JellyfinSession{playing("s1", 10, true)}},
		{40 * time.Second, []models.JellyfinSession{playing("s1", 10, true)}},
		{42 * time.Second, nil},
	}
	for _, step := range steps {
		clock.Set(t0.Add(step.at))
		if err := r.ApplySnapshot(ctx, step.sessions); err != nil {
			t.Fatalf("ApplySnapshot at %s: %v", step.at, err)
		}
	}

	s := store.get(t, "s1")
	checkInt64Equal(t, "play", s.PlayDurationSeconds, 10)
	// 20s paused from T0+20 to T0+40, plus the 2s paused before absence.
	checkInt64Equal(t, "paused", s.PausedDurationSeconds, 22)
	checkTrue(t, "inactive", !s.IsActive)
	if s.EndedAt == nil || !s.EndedAt.Equal(t0.Add(42*time.Second)) {
		t.Errorf("EndedAt = %v, want %v", s.EndedAt, t0.Add(42*time.Second))
	}
}

// The literal scenario: absence observed at the same instant as the last
// paused tick adds nothing further.
func TestReconciler_AbsenceAtLastTick(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	clock.Set(t0)
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	clock.Set(t0.Add(10 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 10, false)})
	clock.Set(t0.Add(20 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 10, true)})
	clock.Set(t0.Add(40 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 10, true)})
	if err := r.ApplySnapshot(ctx, []models.JellyfinSession{}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	s := store.get(t, "s1")
	checkInt64Equal(t, "play", s.PlayDurationSeconds, 10)
	checkInt64Equal(t, "paused", s.PausedDurationSeconds, 20)
	checkTrue(t, "inactive", !s.IsActive)
}

func TestReconciler_SnapshotCreatesWithObservedState(t *testing.T) {
	r, store, notifier, _ := newTestReconciler()

	if err := r.ApplySnapshot(context.Background(), []models.JellyfinSession{
		playing("s1", 95, true),
		{ID: "idle"},
	}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	s := store.get(t, "s1")
	checkInt64Equal(t, "LastPositionSeconds", s.LastPositionSeconds, 95)
	checkTrue(t, "LastStateIsPaused", s.LastStateIsPaused)
	checkInt64Equal(t, "play", s.PlayDurationSeconds, 0)
	checkTrue(t, "StartedAt", s.StartedAt.Equal(t0))
	if _, ok := store.sessions["idle"]; ok {
		t.Error("idle session without now-playing item was stored")
	}

	n, ok := notifier.last()
	if !ok || n.reason != "snapshot" || n.count != 1 {
		t.Errorf("last notice = %+v, want snapshot/1", n)
	}
}

func TestReconciler_DuplicateSnapshotDoesNotDoubleCount(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	clock.Set(t0.Add(10 * time.Second))
	snap := []models.JellyfinSession{playing("s1", 10, false)}
	_ = r.ApplySnapshot(ctx, snap)
	// A catch-up fetch replaying the same state at the same instant.
	_ = r.ApplySnapshot(ctx, snap)

	checkInt64Equal(t, "play", store.get(t, "s1").PlayDurationSeconds, 10)
}

func TestReconciler_PlaybackStopAppliesFinalDelta(t *testing.T) {
	r, store, notifier, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	clock.Set(t0.Add(30 * time.Second))

	ticks := int64(30 * models.TicksPerSecond)
	if err := r.HandlePlaybackStopped(ctx, &models.JellyfinPlaybackStopped{
		SessionID: "s1",
		PlayState: &models.JellyfinPlayState{PositionTicks: &ticks},
	}); err != nil {
		t.Fatalf("HandlePlaybackStopped: %v", err)
	}

	s := store.get(t, "s1")
	checkInt64Equal(t, "play", s.PlayDurationSeconds, 30)
	checkTrue(t, "inactive", !s.IsActive)

	n, _ := notifier.last()
	checkStringEqual(t, "notice reason", n.reason, "stopped")

	// Second stop is a no-op.
	clock.Set(t0.Add(60 * time.Second))
	if err := r.HandlePlaybackStopped(ctx, &models.JellyfinPlaybackStopped{SessionID: "s1"}); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	s = store.get(t, "s1")
	checkInt64Equal(t, "play after second stop", s.PlayDurationSeconds, 30)
	if !s.EndedAt.Equal(t0.Add(30 * time.Second)) {
		t.Errorf("EndedAt moved to %v", s.EndedAt)
	}
}

func TestReconciler_PlaybackStartOnlyCreates(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	start := &models.JellyfinPlaybackStart{
		SessionID: "s1",
		Username:  "alice",
		Item:      &models.JellyfinNowPlayingItem{ID: "m1", Name: "Film", Type: "Movie"},
	}
	if err := r.HandlePlaybackStart(ctx, start); err != nil {
		t.Fatalf("HandlePlaybackStart: %v", err)
	}
	clock.Set(t0.Add(10 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 10, false)})

	// A repeated start must not reset accumulators.
	clock.Set(t0.Add(12 * time.Second))
	if err := r.HandlePlaybackStart(ctx, start); err != nil {
		t.Fatalf("HandlePlaybackStart again: %v", err)
	}
	s := store.get(t, "s1")
	checkInt64Equal(t, "play", s.PlayDurationSeconds, 10)
	checkTrue(t, "StartedAt unchanged", s.StartedAt.Equal(t0))
}

func TestReconciler_RestartAfterFinalizeIsFreshLifecycle(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	clock.Set(t0.Add(10 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 10, false)})
	_ = r.ApplySnapshot(ctx, nil)

	clock.Set(t0.Add(time.Minute))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 50, false)})

	s := store.get(t, "s1")
	checkTrue(t, "active again", s.IsActive)
	checkInt64Equal(t, "play reset", s.PlayDurationSeconds, 0)
	checkTrue(t, "new start", s.StartedAt.Equal(t0.Add(time.Minute)))
	if s.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", s.EndedAt)
	}
}

func TestReconciler_HandleMessage(t *testing.T) {
	r, store, _, _ := newTestReconciler()
	ctx := context.Background()

	data, err := json.Marshal([]models.JellyfinSession{playing("s1", 0, false)})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.HandleMessage(ctx, &models.JellyfinWSMessage{MessageType: models.MessageTypeSessions, Data: data}); err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	checkTrue(t, "created", store.get(t, "s1").IsActive)

	t.Run("malformed payload leaves store untouched", func(t *testing.T) {
		err := r.HandleMessage(ctx, &models.JellyfinWSMessage{MessageType: models.MessageTypeSessions, Data: json.RawMessage(`{"oops":1}`)})
		if err == nil {
			t.Fatal("expected error for non-array Sessions payload")
		}
		checkTrue(t, "still active", store.get(t, "s1").IsActive)
	})

	t.Run("empty array is an empty snapshot", func(t *testing.T) {
		if err := r.HandleMessage(ctx, &models.JellyfinWSMessage{MessageType: models.MessageTypeSessions, Data: json.RawMessage("[]")}); err != nil {
			t.Fatalf("empty array: %v", err)
		}
		checkTrue(t, "finalized", !store.get(t, "s1").IsActive)
	})

	t.Run("progress and unknown types are ignored", func(t *testing.T) {
		for _, typ := range []string{models.MessageTypePlaybackProgress, "LibraryChanged"} {
			if err := r.HandleMessage(ctx, &models.JellyfinWSMessage{MessageType: typ, Data: json.RawMessage(`{}`)}); err != nil {
				t.Errorf("%s: %v", typ, err)
			}
		}
	})
}

func TestReconciler_ListFailureStillAppliesDeltas(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	store.failList = errors.New("disk on fire")
	clock.Set(t0.Add(5 * time.Second))

	err := r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 5, false)})
	if err == nil {
		t.Fatal("expected list error to surface")
	}
	checkInt64Equal(t, "play", store.get(t, "s1").PlayDurationSeconds, 5)
}

func TestReconciler_SessionsWithoutDataKeepsAccumulators(t *testing.T) {
	r, store, _, clock := newTestReconciler()
	ctx := context.Background()

	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 0, false)})
	clock.Set(t0.Add(60 * time.Second))
	_ = r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 60, false)})

	tests := []struct {
		name string
		data json.RawMessage
	}{
		{"null", json.RawMessage("null")},
		{"missing", nil},
		{"whitespace", json.RawMessage("  ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.HandleMessage(ctx, &models.JellyfinWSMessage{MessageType: models.MessageTypeSessions, Data: tt.data})
			if !errors.Is(err, errMissingData) {
				t.Fatalf("err = %v, want errMissingData", err)
			}
			s := store.get(t, "s1")
			checkTrue(t, "still active", s.IsActive)
			checkInt64Equal(t, "play", s.PlayDurationSeconds, 60)
		})
	}

	clock.Set(t0.Add(64 * time.Second))
	if err := r.ApplySnapshot(ctx, []models.JellyfinSession{playing("s1", 64, false)}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	s := store.get(t, "s1")
	checkInt64Equal(t, "play after next snapshot", s.PlayDurationSeconds, 64)
	checkTrue(t, "original start kept", s.StartedAt.Equal(t0))
}
