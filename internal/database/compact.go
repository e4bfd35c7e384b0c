// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/models"
)

// CompactResult reports one compaction.
type CompactResult struct {
	// Buckets is the number of aggregate rows inserted or updated.
	Buckets int64
	// Sessions is the number of session rows removed.
	Sessions int64
}

// Key columns are NOT NULL in both tables, so GROUP BY keys match the
// aggregate primary key exactly and no key appears twice in one INSERT.
const compactInsertSQL = `
INSERT INTO session_aggregates (
	bucket_date, bucket_hour, user_id, user_name, media_id, media_title, media_type,
	series_name, device_name, client_name, session_count, play_seconds, paused_seconds
)
SELECT
	strftime(started_at, '%Y-%m-%d') AS b_date,
	CAST(date_part('hour', started_at) AS INTEGER) AS b_hour,
	user_id,
	MAX(user_name),
	media_id,
	MAX(media_title),
	MAX(media_type),
	MAX(series_name),
	device_name,
	client_name,
	COUNT(*),
	SUM(play_duration_seconds),
	SUM(COALESCE(paused_duration_seconds, 0))
FROM sessions
WHERE started_at < ? AND is_active = FALSE
GROUP BY b_date, b_hour, user_id, media_id, device_name, client_name
ON CONFLICT (bucket_date, bucket_hour, user_id, media_id, device_name, client_name) DO UPDATE SET
	session_count = session_count + EXCLUDED.session_count,
	play_seconds = play_seconds + EXCLUDED.play_seconds,
	paused_seconds = paused_seconds + EXCLUDED.paused_seconds,
	user_name = EXCLUDED.user_name,
	media_title = EXCLUDED.media_title,
	media_type = EXCLUDED.media_type,
	series_name = EXCLUDED.series_name
`

const compactDeleteSQL = `DELETE FROM sessions WHERE started_at < ? AND is_active = FALSE`

// Compact folds every finalized session that started before cutoff into its
// hourly bucket and deletes those sessions, in one transaction. On any
// error the transaction is rolled back and the store is left unchanged.
// Active sessions are never touched.
func (db *DB) Compact(ctx context.Context, cutoff time.Time) (result CompactResult, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff = cutoff.UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return CompactResult{}, fmt.Errorf("compact: begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logging.Error().Err(rbErr).Msg("Compaction rollback failed")
		}
	}()

	insertRes, err := tx.ExecContext(ctx, compactInsertSQL, cutoff)
	if err != nil {
		return CompactResult{}, fmt.Errorf("compact: aggregate sessions: %w", err)
	}
	deleteRes, err := tx.ExecContext(ctx, compactDeleteSQL, cutoff)
	if err != nil {
		return CompactResult{}, fmt.Errorf("compact: delete sessions: %w", err)
	}

	// RowsAffected is best-effort on some drivers; a failure only loses the count.
	buckets, _ := insertRes.RowsAffected()
	deleted, _ := deleteRes.RowsAffected()

	if err = tx.Commit(); err != nil {
		return CompactResult{}, fmt.Errorf("compact: commit: %w", err)
	}
	return CompactResult{Buckets: buckets, Sessions: deleted}, nil
}

// ListAggregates returns buckets on or after sinceDate (YYYY-MM-DD, empty
// for all), newest first, at most limit rows when limit > 0.
func (db *DB) ListAggregates(ctx context.Context, sinceDate string, limit int) ([]models.AggregateBucket, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT bucket_date, bucket_hour, user_id, media_id, device_name, client_name,
		COALESCE(user_name, ''), COALESCE(media_title, ''), COALESCE(media_type, ''), series_name,
		session_count, play_seconds, paused_seconds
		FROM session_aggregates`
	var args []any
	if sinceDate != "" {
		query += ` WHERE bucket_date >= ?`
		args = append(args, sinceDate)
	}
	query += ` ORDER BY bucket_date DESC, bucket_hour DESC, user_id, media_id, device_name, client_name`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer closeWithLog(rows, "rows")

	buckets := make([]models.AggregateBucket, 0)
	for rows.Next() {
		var (
			b      models.AggregateBucket
			series sql.NullString
		)
		if err := rows.Scan(&b.Date, &b.Hour, &b.UserID, &b.MediaID, &b.DeviceName, &b.ClientName,
			&b.UserName, &b.MediaTitle, &b.MediaType, &series,
			&b.SessionCount, &b.PlaySeconds, &b.PausedSeconds); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		b.SeriesName = stringPtr(series)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
