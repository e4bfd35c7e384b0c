// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
jellyfin_websocket.go - Jellyfin WebSocket Client

WebSocket Endpoint: ws://{jellyfin_url}/socket?api_key={api_key}&deviceId={id}

After every successful dial the client subscribes with SessionsStart
("0,2000": no initial delay, a snapshot every 2s), runs the OnConnect hook
(used for the REST catch-up), then reads frames until the connection
drops. Reconnects back off from 1s, doubling to 60s, and reset once a
connection is established.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/metrics"
	"github.com/prwdo/jellytrack/internal/models"
)

// ErrNotConnected is returned when writing without a live connection.
var ErrNotConnected = errors.New("jellyfin websocket not connected")

const (
	// maxMessageSize accommodates large Sessions payloads.
	maxMessageSize = 16 * 1024 * 1024
	// sessionsStartData subscribes immediately with a 2000ms interval.
	sessionsStartData = "0,2000"

	logPreviewLen = 100
)

// MessageHandler consumes decoded envelopes.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *models.JellyfinWSMessage) error
}

// ConnectionState is a point-in-time view of the upstream connection.
type ConnectionState struct {
	Connected     bool       `json:"connected"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// WebSocketConfig configures a WebSocketClient.
type WebSocketConfig struct {
	URL     string
	Handler MessageHandler
	// OnConnect runs after the subscription is sent and before frames are
	// read. Its error is logged; the connection stays up.
	OnConnect func(ctx context.Context) error

	InitialBackoff   time.Duration // default 1s
	MaxBackoff       time.Duration // default 60s
	KeepAliveEvery   time.Duration // default 30s
	ReadTimeout      time.Duration // default 90s
	HandshakeTimeout time.Duration // default 10s
}

// WebSocketClient keeps a connection to Jellyfin's /socket endpoint alive
// and feeds every frame to a MessageHandler.
type WebSocketClient struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	now    func() time.Time

	mu            stdsync.RWMutex
	conn          *websocket.Conn
	lastMessageAt *time.Time

	writeMu stdsync.Mutex
}

// NewWebSocketClient creates a client; call Run to connect.
func NewWebSocketClient(cfg WebSocketConfig) *WebSocketClient {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	if cfg.KeepAliveEvery <= 0 {
		cfg.KeepAliveEvery = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &WebSocketClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
		now: time.Now,
	}
}

// Run connects and reconnects until ctx is cancelled. It only returns
// ctx.Err(); every connection failure is retried.
func (c *WebSocketClient) Run(ctx context.Context) error {
	backoff := c.cfg.InitialBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.cfg.InitialBackoff
		}
		logging.Warn().Err(err).Dur("retry_in", backoff).Msg("Jellyfin WebSocket disconnected")
		metrics.RecordWSReconnect()

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

// session runs one connection from dial to disconnect. connected reports
// whether the dial succeeded.
func (c *WebSocketClient) session(ctx context.Context) (connected bool, err error) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	log.Info().Str("url", logging.RedactURL(c.cfg.URL)).Msg("Connecting to Jellyfin WebSocket")
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	var wg stdsync.WaitGroup
	defer func() {
		cancel()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		wg.Wait()
	}()

	// Unblock ReadMessage on shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	log.Info().Msg("Connected to Jellyfin WebSocket")

	if err := c.Send(models.JellyfinWSMessage{MessageType: models.MessageTypeSessionsStart, Data: mustRaw(sessionsStartData)}); err != nil {
		return true, fmt.Errorf("subscribe to sessions: %w", err)
	}

	wg.Add(1)
	go c.keepAliveLoop(connCtx, &wg)

	if c.cfg.OnConnect != nil {
		if err := c.cfg.OnConnect(connCtx); err != nil {
			log.Warn().Err(err).Msg("Post-connect catch-up failed")
		}
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return true, fmt.Errorf("set read deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, fmt.Errorf("connection closed by server: %w", err)
			}
			return true, fmt.Errorf("read: %w", err)
		}
		c.handleFrame(connCtx, data)
	}
}

// handleFrame decodes one frame. Bad JSON is logged and dropped.
func (c *WebSocketClient) handleFrame(ctx context.Context, data []byte) {
	var msg models.JellyfinWSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Ctx(ctx).Warn().Str("message", logging.Truncate(string(data), logPreviewLen)).Msg("Invalid JSON message")
		return
	}

	now := c.now()
	c.mu.Lock()
	c.lastMessageAt = &now
	c.mu.Unlock()
	metrics.RecordWSMessage(msg.MessageType)

	switch msg.MessageType {
	case models.MessageTypeForceKeepAlive:
		if err := c.Send(models.JellyfinWSMessage{MessageType: models.MessageTypeKeepAlive}); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Keep-alive reply failed")
		}
		return
	case models.MessageTypeKeepAlive:
		return
	}

	if c.cfg.Handler == nil {
		return
	}
	if err := c.cfg.Handler.HandleMessage(ctx, &msg); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("type", msg.MessageType).Msg("Error handling message")
	}
}

func (c *WebSocketClient) keepAliveLoop(ctx context.Context, wg *stdsync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(c.cfg.KeepAliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(models.JellyfinWSMessage{MessageType: models.MessageTypeKeepAlive}); err != nil {
				logging.Ctx(ctx).Debug().Err(err).Msg("Keep-alive failed")
			}
		}
	}
}

// Send writes one JSON message on the live connection.
func (c *WebSocketClient) Send(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// Status returns the connection state.
func (c *WebSocketClient) Status() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := ConnectionState{Connected: c.conn != nil}
	if c.lastMessageAt != nil {
		t := *c.lastMessageAt
		st.LastMessageAt = &t
	}
	return st
}

// Connected reports whether a connection is up.
func (c *WebSocketClient) Connected() bool {
	return c.Status().Connected
}

// LastMessageAt returns when the last valid message arrived, or nil.
func (c *WebSocketClient) LastMessageAt() *time.Time {
	return c.Status().LastMessageAt
}

func mustRaw(s string) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}
