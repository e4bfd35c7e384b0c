// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prwdo/jellytrack/internal/importer"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/sync"
)

// importService tags import log lines apart from a running server's.
const importService = logging.DefaultService + "-import"

var importDays int

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import Playback Reporting history and exit",
	Long: `Import reads the Playback Reporting plugin's activity table through the
custom query endpoint and stores each row as a finalized session. Rows that
were imported before are skipped.`,
	Example: `  jellytrack import --days 30
  jellytrack -c /etc/jellytrack/config.yaml import`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	importCmd.Flags().IntVar(&importDays, "days", 365, "Number of days of history to import")
}

func runImport(cmd *cobra.Command, _ []string) error {
	if importDays <= 0 {
		return fmt.Errorf("--days must be positive, got %d", importDays)
	}

	cfg, db := bootstrap(importService)
	defer closeDatabase(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jf := sync.NewCircuitBreakerClient(sync.NewJellyfinClient(&cfg.Jellyfin), sync.CircuitBreakerSettings{Name: "jellyfin-import"})
	imp := importer.NewImporter(jf, db, cfg.Import)

	res, err := imp.Import(ctx, importDays)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	logging.Info().
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration()).
		Msg("Import finished")

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sessions (%d skipped, %d failed)\n", res.Imported, res.Skipped, res.Failed)
	return nil
}
