// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/events"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
	"github.com/prwdo/jellytrack/internal/models"
)

// SessionStore is the subset of the session store the reconciler writes to.
type SessionStore interface {
	UpsertSession(ctx context.Context, s *models.Session) error
	ApplyDelta(ctx context.Context, p models.SessionProgress) (int64, error)
	Finalize(ctx context.Context, sessionID string, endedAt time.Time) (int64, error)
	GetActive(ctx context.Context, sessionID string) (*models.Session, error)
	ListActive(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
}

// Notifier receives "sessions changed" signals. *events.Bus implements it.
type Notifier interface {
	NotifySessionsUpdated(ctx context.Context, reason string, count int64)
}

// Reconciler maps upstream messages onto session store operations.
// Messages are processed one at a time.
type Reconciler struct {
	store    SessionStore
	notifier Notifier
	now      func() time.Time

	mu stdsync.Mutex
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(store SessionStore, notifier Notifier) *Reconciler {
	return &Reconciler{store: store, notifier: notifier, now: time.Now}
}

// SetClock replaces the wall clock; used by tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// HandleMessage dispatches one decoded WebSocket envelope. Malformed
// payloads return an error and leave the store untouched.
func (r *Reconciler) HandleMessage(ctx context.Context, msg *models.JellyfinWSMessage) error {
	switch msg.MessageType {
	case models.MessageTypeSessions:
		if isEmptyData(msg.Data) {
			return fmt.Errorf("malformed Sessions payload: %w", errMissingData)
		}
		var sessions []models.JellyfinSession
		if err := decodeData(msg.Data, &sessions); err != nil {
			return fmt.Errorf("malformed Sessions payload: %w", err)
		}
		return r.ApplySnapshot(ctx, sessions)

	case models.MessageTypePlaybackStart:
		var start models.JellyfinPlaybackStart
		if err := decodeData(msg.Data, &start); err != nil {
			return fmt.Errorf("malformed PlaybackStart payload: %w", err)
		}
		return r.HandlePlaybackStart(ctx, &start)

	case models.MessageTypePlaybackStopped:
		var stop models.JellyfinPlaybackStopped
		if err := decodeData(msg.Data, &stop); err != nil {
			return fmt.Errorf("malformed PlaybackStopped payload: %w", err)
		}
		return r.HandlePlaybackStopped(ctx, &stop)

	case models.MessageTypePlaybackProgress:
		// Progress is carried by Sessions snapshots.
		return nil

	default:
		logging.Debug().Str("type", msg.MessageType).Msg("Ignoring message type")
		return nil
	}
}

// errMissingData marks a Sessions frame without a list. Only a literal
// empty array means nothing is playing.
var errMissingData = errors.New("missing Data field")

func isEmptyData(data json.RawMessage) bool {
	return len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null"
}

// decodeData treats a missing or null Data field as the zero value.
func decodeData(data json.RawMessage, v any) error {
	if isEmptyData(data) {
		return nil
	}
	return json.Unmarshal(data, v)
}

// ApplySnapshot reconciles a complete list of what is currently playing.
// Entries without a now-playing item or id are skipped. Known active
// sessions get a delta; new ones are created. Every active session missing
// from the list is finalized after a last delta from its stored state.
// Per-session store errors are collected and returned together; the rest of
// the snapshot is still applied.
func (r *Reconciler) ApplySnapshot(ctx context.Context, sessions []models.JellyfinSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	seen := make(map[string]struct{}, len(sessions))
	var errs []error

	for i := range sessions {
		ev, ok := EventFromSession(&sessions[i])
		if !ok {
			continue
		}
		seen[ev.SessionID] = struct{}{}

		existing, err := r.store.GetActive(ctx, ev.SessionID)
		switch {
		case errors.Is(err, database.ErrSessionNotFound):
			if err := r.create(ctx, ev, now); err != nil {
				errs = append(errs, err)
			}
		case err != nil:
			errs = append(errs, fmt.Errorf("lookup %s: %w", ev.SessionID, err))
		default:
			if err := r.progress(ctx, existing, ev.PositionSeconds, ev.IsPaused, now); err != nil {
				errs = append(errs, err)
			}
		}
	}

	active, err := r.store.ListActive(ctx, models.SessionFilter{})
	if err != nil {
		errs = append(errs, fmt.Errorf("list active sessions: %w", err))
	}
	for i := range active {
		s := &active[i]
		if _, ok := seen[s.SessionID]; ok {
			continue
		}
		if err := r.finalize(ctx, s, s.LastPositionSeconds, s.LastStateIsPaused, now, metrics.EndReasonAbsent); err != nil {
			errs = append(errs, err)
		}
	}

	r.notify(ctx, events.ReasonSnapshot, int64(len(seen)))
	return errors.Join(errs...)
}

// HandlePlaybackStart creates the session if it is not already active.
// Payloads without a session id or item are ignored.
func (r *Reconciler) HandlePlaybackStart(ctx context.Context, start *models.JellyfinPlaybackStart) error {
	ev, ok := EventFromPlaybackStart(start)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.store.GetActive(ctx, ev.SessionID)
	switch {
	case errors.Is(err, database.ErrSessionNotFound):
		return r.create(ctx, ev, r.now())
	case err != nil:
		return fmt.Errorf("lookup %s: %w", ev.SessionID, err)
	default:
		return nil
	}
}

// HandlePlaybackStopped applies the final delta from the stop payload and
// finalizes the session. Unknown or already finalized ids are a no-op.
func (r *Reconciler) HandlePlaybackStopped(ctx context.Context, stop *models.JellyfinPlaybackStopped) error {
	if stop == nil || stop.SessionID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.store.GetActive(ctx, stop.SessionID)
	if errors.Is(err, database.ErrSessionNotFound) {
		r.notify(ctx, events.ReasonStopped, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", stop.SessionID, err)
	}

	err = r.finalize(ctx, existing, stop.PlayState.Position(), stop.PlayState.Paused(), r.now(), metrics.EndReasonStopped)
	r.notify(ctx, events.ReasonStopped, 1)
	return err
}

func (r *Reconciler) create(ctx context.Context, ev *models.PlaybackEvent, now time.Time) error {
	s := ev.NewSession(now)
	if err := r.store.UpsertSession(ctx, s); err != nil {
		return fmt.Errorf("create session %s: %w", ev.SessionID, err)
	}
	metrics.RecordSessionStarted()
	logging.Ctx(ctx).Info().
		Str("session_id", s.SessionID).
		Str("user", s.UserName).
		Str("media", s.MediaTitle).
		Str("device", s.DeviceName).
		Msg("Session started")
	return nil
}

// progress applies one delta. A zero row count means the session was
// finalized concurrently; that is not an error.
func (r *Reconciler) progress(ctx context.Context, s *models.Session, position int64, paused bool, now time.Time) error {
	playAdd, pausedAdd := ComputeDeltas(s.LastProgressUpdate, s.LastPositionSeconds, s.LastStateIsPaused, now, position, paused)
	n, err := r.store.ApplyDelta(ctx, models.SessionProgress{
		SessionID:       s.SessionID,
		PositionSeconds: position,
		IsPaused:        paused,
		PlayAdd:         playAdd,
		PausedAdd:       pausedAdd,
		At:              now,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		logging.Ctx(ctx).Debug().Str("session_id", s.SessionID).Msg("Delta skipped, session already finalized")
	}
	return nil
}

func (r *Reconciler) finalize(ctx context.Context, s *models.Session, position int64, paused bool, now time.Time, reason string) error {
	if err := r.progress(ctx, s, position, paused, now); err != nil {
		return err
	}
	n, err := r.store.Finalize(ctx, s.SessionID, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	metrics.RecordSessionsEnded(reason, n)
	logging.Ctx(ctx).Info().
		Str("session_id", s.SessionID).
		Str("user", s.UserName).
		Str("media", s.MediaTitle).
		Str("reason", reason).
		Msg("Session ended")
	return nil
}

func (r *Reconciler) notify(ctx context.Context, reason string, count int64) {
	if r.notifier != nil {
		r.notifier.NotifySessionsUpdated(ctx, reason, count)
	}
}
