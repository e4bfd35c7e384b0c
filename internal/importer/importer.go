// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prwdo/jellytrack/internal/config"
	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/models"
)

// ErrMissingColumns is returned when the plugin reply has no column list.
var ErrMissingColumns = errors.New("playback reporting response missing columns")

// ErrImportRunning is returned when Import is called during another import.
var ErrImportRunning = errors.New("import already in progress")

// progressEvery is the row interval between progress log lines.
const progressEvery = 500

// Source is the upstream side of an import. sync.JellyfinAPI satisfies it.
type Source interface {
	SubmitCustomQuery(ctx context.Context, query string) (*models.CustomQueryResult, error)
	GetUsers(ctx context.Context) ([]models.JellyfinUser, error)
}

// Store is the session store side of an import.
type Store interface {
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	UpsertSession(ctx context.Context, s *models.Session) error
}

// Importer copies Playback Reporting history into the session store.
type Importer struct {
	source Source
	store  Store
	cfg    config.ImportConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// NewImporter creates an importer.
func NewImporter(source Source, store Store, cfg config.ImportConfig) *Importer {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 365
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 60 * time.Second
	}
	return &Importer{source: source, store: store, cfg: cfg, now: time.Now}
}

// BuildQuery returns the Playback Reporting query for the last days days.
func BuildQuery(days int) string {
	return fmt.Sprintf(`SELECT rowid, DateCreated, UserId, ItemId, ItemType, ItemName,
	PlaybackMethod, ClientName, DeviceName, PlayDuration
FROM PlaybackActivity
WHERE DateCreated >= datetime('now', '-%d days')
ORDER BY DateCreated ASC`, days)
}

// Import runs one import covering the last days days (DefaultDays when
// days <= 0). Only query failures and a malformed reply abort the run;
// per-row problems are counted in Result.Failed.
func (i *Importer) Import(ctx context.Context, days int) (*Result, error) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil, ErrImportRunning
	}
	i.running = true
	i.mu.Unlock()
	defer func() {
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
	}()

	if days <= 0 {
		days = i.cfg.DefaultDays
	}
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	res := &Result{StartTime: i.now()}
	defer func() { res.EndTime = i.now() }()

	log.Info().Int("days", days).Msg("Importing Playback Reporting history")

	queryCtx, cancel := context.WithTimeout(ctx, i.cfg.QueryTimeout)
	reply, err := i.source.SubmitCustomQuery(queryCtx, BuildQuery(days))
	cancel()
	if err != nil {
		return res, fmt.Errorf("query playback reporting: %w", err)
	}

	columns := reply.ColumnNames()
	if len(columns) == 0 {
		return res, ErrMissingColumns
	}
	res.Total = len(reply.Results)
	if res.Total == 0 {
		log.Info().Msg("No playback data found to import")
		return res, nil
	}

	userNames := i.userNames(ctx)

	for n, values := range reply.Results {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		i.importRow(ctx, newRow(columns, values), userNames, res)

		if (n+1)%progressEvery == 0 {
			log.Info().
				Float64("progress_percent", res.Progress()).
				Int("processed", res.Processed()).
				Int("total_records", res.Total).
				Int("imported", res.Imported).
				Int("skipped", res.Skipped).
				Int("failed", res.Failed).
				Msg("Import progress")
		}
	}

	log.Info().
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", i.now().Sub(res.StartTime)).
		Msg("Import complete")
	return res, nil
}

func (i *Importer) importRow(ctx context.Context, r row, userNames map[string]string, res *Result) {
	log := logging.Ctx(ctx)

	s, err := r.toSession(userNames)
	if err != nil {
		res.Failed++
		log.Warn().Err(err).Str("rowid", r.str(colRowID)).Msg("Skipping unparseable row")
		return
	}

	_, err = i.store.GetByID(ctx, s.SessionID)
	switch {
	case err == nil:
		res.Skipped++
		return
	case !errors.Is(err, database.ErrSessionNotFound):
		res.Failed++
		log.Warn().Err(err).Str("session_id", s.SessionID).Msg("Lookup failed")
		return
	}

	if err := i.store.UpsertSession(ctx, s); err != nil {
		res.Failed++
		log.Warn().Err(err).Str("session_id", s.SessionID).Msg("Failed to import session")
		return
	}
	res.Imported++
}

// userNames maps user ids to names. A failure leaves every name Unknown.
func (i *Importer) userNames(ctx context.Context) map[string]string {
	users, err := i.source.GetUsers(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Could not load users; names will be Unknown")
		return map[string]string{}
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

// IsRunning reports whether an import is in progress.
func (i *Importer) IsRunning() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}
