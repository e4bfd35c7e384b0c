// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
	"github.com/prwdo/jellytrack/internal/models"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// contacting the server.
var ErrCircuitOpen = errors.New("jellyfin circuit breaker is open")

var _ JellyfinAPI = (*CircuitBreakerClient)(nil)

// CircuitBreakerSettings tunes the breaker. Zero values take defaults.
type CircuitBreakerSettings struct {
	Name        string
	MaxRequests uint32        // probes allowed in half-open state (default 3)
	Interval    time.Duration // closed-state count reset (default 1m)
	Timeout     time.Duration // open to half-open delay (default 2m)
	MinRequests uint32        // requests before the ratio is considered (default 10)
	TripRatio   float64       // failure ratio that opens the circuit (default 0.6)
}

func (s CircuitBreakerSettings) withDefaults() CircuitBreakerSettings {
	if s.Name == "" {
		s.Name = "jellyfin-api"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Minute
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.TripRatio == 0 {
		s.TripRatio = 0.6
	}
	return s
}

// CircuitBreakerClient wraps a JellyfinAPI with a circuit breaker so an
// unreachable server is not hammered by catch-up and import calls.
type CircuitBreakerClient struct {
	client JellyfinAPI
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps client.
func NewCircuitBreakerClient(client JellyfinAPI, settings CircuitBreakerSettings) *CircuitBreakerClient {
	s := settings.withDefaults()

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.TripRatio {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("Opening Jellyfin circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a server failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: s.Name}
}

// execute runs fn through the breaker and converts its result type.
func execute[T any](cbc *CircuitBreakerClient, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cbc.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			return zero, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()

	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Ping tests connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := execute(cbc, func() (struct{}, error) {
		return struct{}{}, cbc.client.Ping(ctx)
	})
	return err
}

// GetSessions retrieves sessions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	return execute(cbc, func() ([]models.JellyfinSession, error) {
		return cbc.client.GetSessions(ctx)
	})
}

// GetUsers retrieves users with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	return execute(cbc, func() ([]models.JellyfinUser, error) {
		return cbc.client.GetUsers(ctx)
	})
}

// SubmitCustomQuery runs a Playback Reporting query with circuit breaker protection.
func (cbc *CircuitBreakerClient) SubmitCustomQuery(ctx context.Context, query string) (*models.CustomQueryResult, error) {
	return execute(cbc, func() (*models.CustomQueryResult, error) {
		return cbc.client.SubmitCustomQuery(ctx, query)
	})
}

// State returns the current breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

// Name returns the breaker name.
func (cbc *CircuitBreakerClient) Name() string {
	return cbc.name
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
