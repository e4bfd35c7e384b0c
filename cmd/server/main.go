// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prwdo/jellytrack/internal/config"
	"github.com/prwdo/jellytrack/internal/database"
	"github.com/prwdo/jellytrack/internal/logging"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "jellytrack",
	Short: "Jellytrack - Jellyfin playback session tracker",
	Long: `Jellytrack follows a Jellyfin server's live session stream, reconciles it
into playback sessions with play and pause accounting, and compacts aged
sessions into hourly aggregates.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if configPath != "" {
			return os.Setenv(config.ConfigPathEnvVar, configPath)
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.AddCommand(serveCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, initializes logging and opens the
// database. Log lines carry service as their "service" field. Configuration
// errors are fatal; a missing API key logs "JELLYFIN_API_KEY is not set".
func bootstrap(service string) (*config.Config, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg(err.Error())
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Service: service,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to initialize database")
	}
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	return cfg, db
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
		return
	}
	logging.Info().Msg("Database closed")
}
