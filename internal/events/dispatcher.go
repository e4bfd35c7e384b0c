// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package events

import (
	"context"
	"sync"

	"github.com/prwdo/jellytrack/internal/logging"
)

// Handler consumes one notification. Handlers run on the dispatcher
// goroutine and should return quickly.
type Handler func(ctx context.Context, ev SessionsUpdated)

// Dispatcher fans bus messages out to registered handlers.
type Dispatcher struct {
	bus *Bus

	mu       sync.RWMutex
	handlers []Handler
}

// NewDispatcher creates a dispatcher over bus.
func NewDispatcher(bus *Bus) *Dispatcher {
	return &Dispatcher{bus: bus}
}

// Handle registers h. Safe to call while Serve is running.
func (d *Dispatcher) Handle(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Serve drains the subscription until ctx is cancelled. It implements
// suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	msgs, err := d.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrBusClosed
			}
			ev, err := unmarshalSessionsUpdated(msg.Payload)
			msg.Ack()
			if err != nil {
				logging.Warn().Err(err).Str("uuid", msg.UUID).Msg("Dropping undecodable session notification")
				continue
			}
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev SessionsUpdated) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// String implements fmt.Stringer for suture logging.
func (d *Dispatcher) String() string {
	return "session-events"
}
