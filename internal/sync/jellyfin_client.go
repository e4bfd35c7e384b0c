// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
jellyfin_client.go - Jellyfin REST API Client

Endpoints used:
  - GET  /Sessions: one-shot snapshot for reconnect catch-up
  - GET  /Users: id to name map for the historical importer
  - POST /user_usage_stats/submit_custom_query: Playback Reporting plugin
  - GET  /System/Ping: connectivity check

The API key is sent both as the X-Emby-Token header and as the api_key
query parameter; older servers only honor the latter.
*/

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/prwdo/jellytrack/internal/config"
	"github.com/prwdo/jellytrack/internal/logging"
	"github.com/prwdo/jellytrack/internal/models"
)

// JellyfinAPI is implemented by JellyfinClient and CircuitBreakerClient.
type JellyfinAPI interface {
	Ping(ctx context.Context) error
	GetSessions(ctx context.Context) ([]models.JellyfinSession, error)
	GetUsers(ctx context.Context) ([]models.JellyfinUser, error)
	SubmitCustomQuery(ctx context.Context, query string) (*models.CustomQueryResult, error)
}

var _ JellyfinAPI = (*JellyfinClient)(nil)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// JellyfinClient provides access to the Jellyfin REST API.
type JellyfinClient struct {
	baseURL        string
	apiKey         string
	deviceID       string
	requestTimeout time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewJellyfinClient creates a client from the Jellyfin settings.
//
// Requests without a context deadline get cfg.RequestTimeout. Outgoing
// requests are limited to cfg.RequestsPerSecond with a burst of one second.
func NewJellyfinClient(cfg *config.JellyfinConfig) *JellyfinClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &JellyfinClient{
		baseURL:        cfg.BaseURL(),
		apiKey:         cfg.APIKey,
		deviceID:       cfg.DeviceID,
		requestTimeout: timeout,
		httpClient:     &http.Client{},
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetSessions retrieves every session the server knows about, playing or idle.
func (c *JellyfinClient) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	var sessions []models.JellyfinSession
	if err := c.getJSON(ctx, "/Sessions", &sessions); err != nil {
		return nil, fmt.Errorf("jellyfin sessions: %w", err)
	}
	return sessions, nil
}

// GetUsers retrieves all users.
func (c *JellyfinClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	var users []models.JellyfinUser
	if err := c.getJSON(ctx, "/Users", &users); err != nil {
		return nil, fmt.Errorf("jellyfin users: %w", err)
	}
	return users, nil
}

// Ping tests connectivity to the server.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/System/Ping", nil)
	if err != nil {
		return fmt.Errorf("jellyfin ping: %w", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin ping returned status %d", resp.StatusCode)
	}
	return nil
}

// SubmitCustomQuery runs a SQL query through the Playback Reporting plugin.
// Numbers in the result rows are decoded as json.Number.
func (c *JellyfinClient) SubmitCustomQuery(ctx context.Context, query string) (*models.CustomQueryResult, error) {
	body, err := json.Marshal(models.CustomQueryRequest{CustomQueryString: query})
	if err != nil {
		return nil, fmt.Errorf("encode custom query: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/user_usage_stats/submit_custom_query", body)
	if err != nil {
		return nil, fmt.Errorf("playback reporting query: %w", err)
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("playback reporting query: %w", err)
	}

	var result models.CustomQueryResult
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode playback reporting result: %w", err)
	}
	return &result, nil
}

func (c *JellyfinClient) getJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do waits for the limiter and performs one request.
func (c *JellyfinClient) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		// The body is read by the caller after do returns, so cancel with it.
		resp, err := c.doWithContext(ctx, method, endpoint, body)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.doWithContext(ctx, method, endpoint, body)
}

func (c *JellyfinClient) doWithContext(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	fullURL := c.baseURL + endpoint + "?" + q.Encode()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Jellytrack")
	req.Header.Set("X-Emby-Device-Name", "Jellytrack")
	req.Header.Set("X-Emby-Device-Id", c.deviceID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Trace().Str("method", method).Str("url", logging.RedactURL(fullURL)).Msg("Jellyfin request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// cancelOnClose releases a request-scoped timeout when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
