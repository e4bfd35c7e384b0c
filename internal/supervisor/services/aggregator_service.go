// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package services

import (
	"context"
	"fmt"
)

// StartStopper matches the retention.Aggregator lifecycle.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// AggregatorService adapts the aggregator's Start/Stop loop to suture:
// Start, block until the context is canceled, then Stop (which waits for
// an in-flight compaction to finish).
//
//	agg := retention.NewAggregator(db, cfg.Retention)
//	tree.AddDataService(services.NewAggregatorService(agg))
type AggregatorService struct {
	aggregator StartStopper
	name       string
}

// NewAggregatorService creates the wrapper.
func NewAggregatorService(aggregator StartStopper) *AggregatorService {
	return &AggregatorService{
		aggregator: aggregator,
		name:       "retention-aggregator",
	}
}

// Serve implements suture.Service. A Start failure is returned so suture
// restarts the service with backoff.
func (s *AggregatorService) Serve(ctx context.Context) error {
	if err := s.aggregator.Start(ctx); err != nil {
		return fmt.Errorf("aggregator start failed: %w", err)
	}

	<-ctx.Done()
	s.aggregator.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *AggregatorService) String() string {
	return s.name
}
