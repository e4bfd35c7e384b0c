// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/prwdo/jellytrack/internal/api"
	"github.com/prwdo/jellytrack/internal/config"
	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/events"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
	"github.com/prwdo/jellytrack/internal/retention"
	"github.com/prwdo/jellytrack/internal/supervisor"
	"github.com/prwdo/jellytrack/internal/supervisor/services"
	"github.com/prwdo/jellytrack/internal/sync"
)

const httpShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker (default command)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, db := bootstrap(logging.DefaultService)
	defer closeDatabase(db)

	logging.Info().
		Str("jellyfin_url", cfg.Jellyfin.BaseURL()).
		Int("session_timeout_minutes", cfg.Tracking.SessionTimeoutMinutes).
		Int("retention_days", cfg.Retention.RetentionDays).
		Strs("excluded_user_names", cfg.Tracking.ExcludedUserNames).
		Msg("Starting jellytrack")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogLogger := logging.NewSlogLogger()

	bus := events.NewBus(slogLogger)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event bus")
		}
	}()

	tracker, reaper, jf, err := buildTracker(cfg, db, bus)
	if err != nil {
		return err
	}
	if err := jf.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Jellyfin not reachable yet, the tracker will keep retrying")
	}

	aggregator := retention.NewAggregator(db, cfg.Retention)

	prometheus.MustRegister(metrics.NewStatusCollector(db, tracker.Client()))
	handler := api.NewHandler(db, tracker.Client(), cfg.Tracking.ExcludedUserNames)

	dispatcher := events.NewDispatcher(bus)
	dispatcher.Handle(handler.InvalidateCache)
	dispatcher.Handle(func(ctx context.Context, ev events.SessionsUpdated) {
		logging.Ctx(ctx).Debug().Str("reason", ev.Reason).Int64("count", ev.Count).Msg("Sessions updated")
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, nil, prometheus.DefaultGatherer).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddDataService(services.NewAggregatorService(aggregator))
	tree.AddDataService(reaper)
	tree.AddMessagingService(dispatcher)
	tree.AddMessagingService(tracker)
	tree.AddAPIService(services.NewHTTPServerService(server, httpShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// buildTracker wires the REST client, reconciler, reaper and WebSocket
// tracker around db.
func buildTracker(cfg *config.Config, db *database.DB, bus *events.Bus) (*sync.Tracker, *sync.Reaper, sync.JellyfinAPI, error) {
	jf := sync.NewCircuitBreakerClient(sync.NewJellyfinClient(&cfg.Jellyfin), sync.CircuitBreakerSettings{})

	reconciler := sync.NewReconciler(db, bus)
	reaper := sync.NewReaper(db, bus, cfg.Tracking.SessionTimeout(), cfg.Tracking.ReapInterval)

	tracker, err := sync.NewTracker(sync.TrackerConfig{
		WebSocketURL: cfg.Jellyfin.WebSocketURL(),
		Reconciler:   reconciler,
		API:          jf,
		Reaper:       reaper,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create tracker: %w", err)
	}
	return tracker, reaper, jf, nil
}
