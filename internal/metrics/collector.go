// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prwdo/jellytrack/internal/logging"
)

// SessionCounter reports active and total session rows.
type SessionCounter interface {
	CountSessions(ctx context.Context) (active, total int64, err error)
}

// ConnectionStatus reports the upstream WebSocket state.
type ConnectionStatus interface {
	Connected() bool
	LastMessageAt() *time.Time
}

// StatusCollector reads gauges from the store and the WebSocket client at
// scrape time. Either source may be nil; its gauges are then omitted.
type StatusCollector struct {
	sessions SessionCounter
	conn     ConnectionStatus
	timeout  time.Duration

	activeDesc      *prometheus.Desc
	totalDesc       *prometheus.Desc
	connectedDesc   *prometheus.Desc
	lastMessageDesc *prometheus.Desc
}

// NewStatusCollector creates a collector over the given sources.
func NewStatusCollector(sessions SessionCounter, conn ConnectionStatus) *StatusCollector {
	return &StatusCollector{
		sessions: sessions,
		conn:     conn,
		timeout:  5 * time.Second,
		activeDesc: prometheus.NewDesc("jellytrack_active_sessions",
			"Number of sessions currently active", nil, nil),
		totalDesc: prometheus.NewDesc("jellytrack_total_sessions",
			"Number of raw session rows in the store", nil, nil),
		connectedDesc: prometheus.NewDesc("jellytrack_ws_connected",
			"1 when the upstream WebSocket is connected", nil, nil),
		lastMessageDesc: prometheus.NewDesc("jellytrack_last_ws_message_timestamp",
			"Unix time of the last decoded WebSocket message", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeDesc
	ch <- c.totalDesc
	ch <- c.connectedDesc
	ch <- c.lastMessageDesc
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		active, total, err := c.sessions.CountSessions(ctx)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to count sessions for metrics")
		} else {
			ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(active))
			ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(total))
		}
	}

	if c.conn != nil {
		connected := 0.0
		if c.conn.Connected() {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, connected)

		last := 0.0
		if ts := c.conn.LastMessageAt(); ts != nil {
			last = float64(ts.Unix())
		}
		ch <- prometheus.MustNewConstMetric(c.lastMessageDesc, prometheus.GaugeValue, last)
	}
}
