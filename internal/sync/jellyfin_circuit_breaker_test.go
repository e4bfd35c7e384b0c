// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/prwdo/jellytrack/internal/models"
)

// stubAPI fails while err is set.
type stubAPI struct {
	err   error
	calls int
}

func (s *stubAPI) Ping(context.Context) error {
	s.calls++
	return s.err
}

func (s *stubAPI) GetSessions(context.Context) ([]models.JellyfinSession, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []models.JellyfinSession{playing("s1", 0, false)}, nil
}

func (s *stubAPI) GetUsers(context.Context) ([]models.JellyfinUser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []models.JellyfinUser{{ID: "u1", Name: "alice"}}, nil
}

func (s *stubAPI) SubmitCustomQuery(context.Context, string) (*models.CustomQueryResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.CustomQueryResult{Columns: []string{"rowid"}}, nil
}

func TestCircuitBreaker_PassesResultsThrough(t *testing.T) {
	api := &stubAPI{}
	cbc := NewCircuitBreakerClient(api, CircuitBreakerSettings{Name: "test-pass"})

	sessions, err := cbc.GetSessions(context.Background())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("GetSessions() = %v, %v", sessions, err)
	}
	users, err := cbc.GetUsers(context.Background())
	if err != nil || users[0].Name != "alice" {
		t.Fatalf("GetUsers() = %v, %v", users, err)
	}
	res, err := cbc.SubmitCustomQuery(context.Background(), "SELECT 1")
	if err != nil || res.ColumnNames()[0] != "rowid" {
		t.Fatalf("SubmitCustomQuery() = %v, %v", res, err)
	}
	checkStringEqual(t, "Name", cbc.Name(), "test-pass")
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	api := &stubAPI{err: errors.New("connection refused")}
	cbc := NewCircuitBreakerClient(api, CircuitBreakerSettings{Name: "test-open", Timeout: time.Hour})

	if cbc.State() != gobreaker.StateClosed {
		t.Fatalf("initial state = %v, want closed", cbc.State())
	}
	for i := 0; i < 10; i++ {
		_ = cbc.Ping(context.Background())
	}
	if cbc.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cbc.State())
	}

	calls := api.calls
	err := cbc.Ping(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want wrapped gobreaker.ErrOpenState", err)
	}
	checkTrue(t, "rejected without calling server", api.calls == calls)
}

func TestCircuitBreaker_StaysClosedBelowMinRequests(t *testing.T) {
	api := &stubAPI{err: errors.New("boom")}
	cbc := NewCircuitBreakerClient(api, CircuitBreakerSettings{Name: "test-min"})

	for i := 0; i < 9; i++ {
		_ = cbc.Ping(context.Background())
	}
	if cbc.State() != gobreaker.StateClosed {
		t.Errorf("state = %v after 9 failures, want closed", cbc.State())
	}
}

func TestCircuitBreaker_CancellationIsNotFailure(t *testing.T) {
	api := &stubAPI{err: context.Canceled}
	cbc := NewCircuitBreakerClient(api, CircuitBreakerSettings{Name: "test-cancel"})

	for i := 0; i < 20; i++ {
		_ = cbc.Ping(context.Background())
	}
	if cbc.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", cbc.State())
	}
}

func TestStateToFloat(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.want {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
