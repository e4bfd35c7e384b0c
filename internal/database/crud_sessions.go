// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prwdo/jellytrack/internal/models"
)

const sessionColumns = `session_id, user_id, COALESCE(user_name, ''), device_id, device_name, client_name,
	media_id, COALESCE(media_title, ''), COALESCE(media_type, ''), series_name, season_number, episode_number,
	started_at, ended_at, play_duration_seconds, COALESCE(paused_duration_seconds, 0),
	COALESCE(last_position_seconds, 0), COALESCE(last_state_is_paused, FALSE), is_active, last_progress_update`

// UpsertSession inserts s, or overwrites every column of an existing row
// with the same session id. Overwriting resets the accumulators to the
// values carried in s.
func (db *DB) UpsertSession(ctx context.Context, s *models.Session) error {
	if s == nil || s.SessionID == "" {
		return fmt.Errorf("upsert session: session id is required")
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	// ended_at is set exactly when the row is inactive.
	var endedAt sql.NullTime
	if !s.IsActive {
		endedAt = nullTime(s.EndedAt)
		if !endedAt.Valid {
			endedAt = sql.NullTime{Time: s.LastProgressUpdate.UTC(), Valid: true}
		}
	}

	_, err := db.execWithRetry(ctx, `
		INSERT INTO sessions (
			session_id, user_id, user_name, device_id, device_name, client_name,
			media_id, media_title, media_type, series_name, season_number, episode_number,
			started_at, ended_at, play_duration_seconds, paused_duration_seconds,
			last_position_seconds, last_state_is_paused, is_active, last_progress_update
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			user_name = EXCLUDED.user_name,
			device_id = EXCLUDED.device_id,
			device_name = EXCLUDED.device_name,
			client_name = EXCLUDED.client_name,
			media_id = EXCLUDED.media_id,
			media_title = EXCLUDED.media_title,
			media_type = EXCLUDED.media_type,
			series_name = EXCLUDED.series_name,
			season_number = EXCLUDED.season_number,
			episode_number = EXCLUDED.episode_number,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			play_duration_seconds = EXCLUDED.play_duration_seconds,
			paused_duration_seconds = EXCLUDED.paused_duration_seconds,
			last_position_seconds = EXCLUDED.last_position_seconds,
			last_state_is_paused = EXCLUDED.last_state_is_paused,
			is_active = EXCLUDED.is_active,
			last_progress_update = EXCLUDED.last_progress_update`,
		s.SessionID, s.UserID, s.UserName, s.DeviceID, s.DeviceName, s.ClientName,
		s.MediaID, s.MediaTitle, s.MediaType, nullString(s.SeriesName), nullInt(s.SeasonNumber), nullInt(s.EpisodeNumber),
		s.StartedAt.UTC(), endedAt, nonNegative(s.PlayDurationSeconds), nonNegative(s.PausedDurationSeconds),
		s.LastPositionSeconds, s.LastStateIsPaused, s.IsActive, s.LastProgressUpdate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.SessionID, err)
	}
	return nil
}

// ApplyDelta adds the step in p to an active session and records the new
// player state. It returns the number of rows changed, which is 0 when the
// session is unknown or already finalized. last_progress_update never moves
// backwards.
func (db *DB) ApplyDelta(ctx context.Context, p models.SessionProgress) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.execWithRetry(ctx, `
		UPDATE sessions SET
			play_duration_seconds = play_duration_seconds + ?,
			paused_duration_seconds = COALESCE(paused_duration_seconds, 0) + ?,
			last_position_seconds = ?,
			last_state_is_paused = ?,
			last_progress_update = GREATEST(last_progress_update, ?)
		WHERE session_id = ? AND is_active = TRUE`,
		nonNegative(p.PlayAdd), nonNegative(p.PausedAdd), p.PositionSeconds, p.IsPaused, p.At.UTC(), p.SessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("apply delta to %s: %w", p.SessionID, err)
	}
	return res.RowsAffected()
}

// Finalize ends an active session at endedAt (never before started_at).
// Finalizing an inactive or unknown session changes nothing and returns 0.
func (db *DB) Finalize(ctx context.Context, sessionID string, endedAt time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.execWithRetry(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			ended_at = GREATEST(started_at, ?)
		WHERE session_id = ? AND is_active = TRUE`,
		endedAt.UTC(), sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("finalize %s: %w", sessionID, err)
	}
	return res.RowsAffected()
}

// GetActive returns the active session with the given id, or
// ErrSessionNotFound.
func (db *DB) GetActive(ctx context.Context, sessionID string) (*models.Session, error) {
	return db.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND is_active = TRUE`, sessionID)
}

// GetByID returns the session with the given id regardless of state, or
// ErrSessionNotFound.
func (db *DB) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	return db.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
}

func (db *DB) getOne(ctx context.Context, query, sessionID string) (*models.Session, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	s, err := scanSession(db.conn.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return s, nil
}

// ListActive returns active sessions matching filter, newest first.
func (db *DB) ListActive(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	conditions, args := buildSessionFilter(filter)
	conditions = append([]string{"is_active = TRUE"}, conditions...)
	query := `SELECT ` + sessionColumns + ` FROM sessions` + whereClause(conditions) + ` ORDER BY started_at DESC, session_id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	sessions := make([]models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// CountSessions returns the number of active rows and of all rows still in
// the sessions table.
func (db *DB) CountSessions(ctx context.Context) (active, total int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active = TRUE), COUNT(*) FROM sessions`,
	).Scan(&active, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	return active, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s       models.Session
		series  sql.NullString
		season  sql.NullInt64
		episode sql.NullInt64
		endedAt sql.NullTime
	)
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.UserName, &s.DeviceID, &s.DeviceName, &s.ClientName,
		&s.MediaID, &s.MediaTitle, &s.MediaType, &series, &season, &episode,
		&s.StartedAt, &endedAt, &s.PlayDurationSeconds, &s.PausedDurationSeconds,
		&s.LastPositionSeconds, &s.LastStateIsPaused, &s.IsActive, &s.LastProgressUpdate,
	)
	if err != nil {
		return nil, err
	}
	s.SeriesName = stringPtr(series)
	s.SeasonNumber = intPtr(season)
	s.EpisodeNumber = intPtr(episode)
	s.EndedAt = timePtr(endedAt)
	s.StartedAt = s.StartedAt.UTC()
	s.LastProgressUpdate = s.LastProgressUpdate.UTC()
	return &s, nil
}
