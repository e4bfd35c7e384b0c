// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordSessionsEnded(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		n      int64
		want   float64
	}{
		{"stopped adds one", EndReasonStopped, 1, 1},
		{"reaped adds batch", EndReasonReaped, 4, 4},
		{"zero is ignored", EndReasonAbsent, 0, 0},
		{"negative is ignored", EndReasonAbsent, -3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SessionsEnded.WithLabelValues(tt.reason))
			RecordSessionsEnded(tt.reason, tt.n)
			after := testutil.ToFloat64(SessionsEnded.WithLabelValues(tt.reason))
			if got := after - before; got != tt.want {
				t.Errorf("delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordCompaction(t *testing.T) {
	okBefore := testutil.ToFloat64(CompactionRuns.WithLabelValues("success"))
	errBefore := testutil.ToFloat64(CompactionRuns.WithLabelValues("error"))
	rowsBefore := testutil.ToFloat64(CompactedSessions)

	RecordCompaction(12, nil)
	RecordCompaction(0, errors.New("boom"))

	if got := testutil.ToFloat64(CompactionRuns.WithLabelValues("success")) - okBefore; got != 1 {
		t.Errorf("success runs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CompactionRuns.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("error runs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CompactedSessions) - rowsBefore; got != 12 {
		t.Errorf("compacted delta = %v, want 12", got)
	}
}

func TestRecordWSMessage_EmptyType(t *testing.T) {
	before := testutil.ToFloat64(WSMessages.WithLabelValues("unknown"))
	RecordWSMessage("")
	if got := testutil.ToFloat64(WSMessages.WithLabelValues("unknown")) - before; got != 1 {
		t.Errorf("unknown delta = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/test-histogram", "200", 250*time.Millisecond)

	obs, err := APIRequestDuration.GetMetricWithLabelValues("GET", "/api/v1/test-histogram")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues() error = %v", err)
	}
	var m dto.Metric
	if err := obs.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	h := m.GetHistogram()
	if h.GetSampleCount() != 1 || h.GetSampleSum() != 0.25 {
		t.Errorf("histogram count = %d sum = %v, want 1 and 0.25", h.GetSampleCount(), h.GetSampleSum())
	}
	if got := testutil.ToFloat64(APIRequests.WithLabelValues("GET", "/api/v1/test-histogram", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

type fakeCounter struct {
	active, total int64
	err           error
}

func (f fakeCounter) CountSessions(context.Context) (int64, int64, error) {
	return f.active, f.total, f.err
}

type fakeConn struct {
	connected bool
	last      *time.Time
}

func (f fakeConn) Connected() bool           { return f.connected }
func (f fakeConn) LastMessageAt() *time.Time { return f.last }

func TestStatusCollector(t *testing.T) {
	last := time.Unix(1_700_000_000, 0)
	c := NewStatusCollector(fakeCounter{active: 3, total: 40}, fakeConn{connected: true, last: &last})

	expected := `
# HELP jellytrack_active_sessions Number of sessions currently active
# TYPE jellytrack_active_sessions gauge
jellytrack_active_sessions 3
# HELP jellytrack_last_ws_message_timestamp Unix time of the last decoded WebSocket message
# TYPE jellytrack_last_ws_message_timestamp gauge
jellytrack_last_ws_message_timestamp 1.7e+09
# HELP jellytrack_total_sessions Number of raw session rows in the store
# TYPE jellytrack_total_sessions gauge
jellytrack_total_sessions 40
# HELP jellytrack_ws_connected 1 when the upstream WebSocket is connected
# TYPE jellytrack_ws_connected gauge
jellytrack_ws_connected 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collector output: %v", err)
	}
}

func TestStatusCollector_StoreErrorOmitsSessionGauges(t *testing.T) {
	c := NewStatusCollector(fakeCounter{err: errors.New("db down")}, fakeConn{})

	if n := testutil.CollectAndCount(c); n != 2 {
		t.Errorf("CollectAndCount() = %d, want 2 (connection gauges only)", n)
	}
}

func TestStatusCollector_NilSources(t *testing.T) {
	c := NewStatusCollector(nil, nil)
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 0 {
		t.Errorf("expected no families, got %d", len(families))
	}
}
