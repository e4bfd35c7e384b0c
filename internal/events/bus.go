// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/prwdo/jellytrack/internal/logging"
)

// ErrBusClosed is returned when publishing or subscribing after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Bus is an in-process publish/subscribe channel for session notifications.
type Bus struct {
	pubsub *gochannel.GoChannel
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus. A nil logger uses the zerolog bridge.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewSlogLogger()
	}
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))

	return &Bus{pubsub: ps, now: time.Now}
}

// NotifySessionsUpdated publishes a SessionsUpdated message. Failures are
// logged, never returned: a missed notification only delays a cache refresh.
func (b *Bus) NotifySessionsUpdated(ctx context.Context, reason string, count int64) {
	if err := b.Publish(ctx, SessionsUpdated{Reason: reason, Count: count, At: b.now().UTC()}); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("reason", reason).Msg("Session notification dropped")
	}
}

// Publish sends ev to all current subscribers.
func (b *Bus) Publish(ctx context.Context, ev SessionsUpdated) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := ev.marshal()
	if err != nil {
		return fmt.Errorf("marshal sessions updated: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	msg.Metadata.Set("reason", ev.Reason)

	return b.pubsub.Publish(TopicSessionsUpdated, msg)
}

// Subscribe returns the raw message channel for the sessions topic. The
// channel closes when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	return b.pubsub.Subscribe(ctx, TopicSessionsUpdated)
}

// Close shuts the bus down. Subsequent calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
