// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session end reasons.
const (
	EndReasonStopped = "stopped"
	EndReasonAbsent  = "absent"
	EndReasonReaped  = "reaped"
)

var (
	// Session lifecycle
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellytrack_sessions_started_total",
			Help: "Total number of playback sessions created",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellytrack_sessions_ended_total",
			Help: "Total number of playback sessions finalized, by reason",
		},
		[]string{"reason"}, // "stopped", "absent", "reaped"
	)

	// Compaction
	CompactionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellytrack_compaction_runs_total",
			Help: "Total number of compaction runs, by result",
		},
		[]string{"result"}, // "success", "error", "skipped"
	)

	CompactedSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellytrack_compacted_sessions_total",
			Help: "Total number of raw session rows folded into aggregates",
		},
	)

	// Upstream connection
	WSReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellytrack_ws_reconnects_total",
			Help: "Total number of WebSocket reconnection attempts",
		},
	)

	WSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellytrack_ws_messages_total",
			Help: "Total number of decoded WebSocket messages, by message type",
		},
		[]string{"type"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jellytrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellytrack_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker, by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// HTTP surface
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jellytrack_api_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellytrack_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordSessionStarted counts one created session.
func RecordSessionStarted() {
	SessionsStarted.Inc()
}

// RecordSessionsEnded counts n finalized sessions for reason.
func RecordSessionsEnded(reason string, n int64) {
	if n <= 0 {
		return
	}
	SessionsEnded.WithLabelValues(reason).Add(float64(n))
}

// RecordCompaction records one compaction run.
func RecordCompaction(compacted int64, err error) {
	if err != nil {
		CompactionRuns.WithLabelValues("error").Inc()
		return
	}
	CompactionRuns.WithLabelValues("success").Inc()
	if compacted > 0 {
		CompactedSessions.Add(float64(compacted))
	}
}

// RecordCompactionSkipped records a run that did nothing because retention is disabled.
func RecordCompactionSkipped() {
	CompactionRuns.WithLabelValues("skipped").Inc()
}

// RecordWSReconnect counts one reconnection attempt.
func RecordWSReconnect() {
	WSReconnects.Inc()
}

// RecordWSMessage counts one decoded upstream message.
func RecordWSMessage(messageType string) {
	if messageType == "" {
		messageType = "unknown"
	}
	WSMessages.WithLabelValues(messageType).Inc()
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	APIRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}
