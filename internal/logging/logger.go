// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultService is stamped on every line as the "service" field.
const DefaultService = "jellytrack"

// Config controls the process-wide logger built by Init.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal or off. Unknown
	// values fall back to info.
	Level string
	// Format is json (default) or console.
	Format string
	// Caller adds file:line to each line.
	Caller bool
	// Service overrides DefaultService.
	Service string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is what the package uses before main calls Init.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Service: DefaultService, Output: os.Stderr}
}

// levels maps accepted level names, including aliases, to zerolog levels.
var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // packages log before main has loaded configuration
func init() {
	Init(DefaultConfig())
}

// Init builds the global logger from cfg. Calling it again replaces the
// logger for all subsequent calls; events already started keep the old one.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	ctx := zerolog.New(out).With().Timestamp().Str("service", service)
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	l := ctx.Logger()
	global.Store(&l)
}

func parseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level names a known log level. An empty string
// is not valid; Init treats it as info.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

func current() *zerolog.Logger {
	return global.Load()
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current()
}

// SetLogger swaps in l as the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is meant to be passed by value
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}

// With starts a child context of the global logger.
func With() zerolog.Context { return current().With() }

func Trace() *zerolog.Event { return current().Trace() }
func Debug() *zerolog.Event { return current().Debug() }

// Info starts an info-level event.
//
//	logging.Info().Int64("compacted", n).Msg("Aggregated and pruned sessions")
func Info() *zerolog.Event { return current().Info() }

func Warn() *zerolog.Event  { return current().Warn() }
func Error() *zerolog.Event { return current().Error() }

// Fatal starts a fatal event; Msg exits the process with status 1.
func Fatal() *zerolog.Event { return current().Fatal() }

// NewTestLogger writes JSON lines to w with no global fields.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
