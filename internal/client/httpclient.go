// Package client is the device side of synchronization: an HTTP client for
// the sync endpoints, the polling reconciler and the local write path.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of retry attempts for 429 responses
	MaxRetries = 3

	// DefaultBackoff is the initial backoff when the server sends no Retry-After
	DefaultBackoff = 1 * time.Second
)

// HTTPClient wraps http.Client with identity headers and 429 retry logic.
// Every request carries X-Correlation-ID and X-Device-ID, plus either a
// bearer token or, in dev mode, X-Debug-Sub.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	deviceID   string
	token      string
	debugSub   string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithToken sends "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithDebugSubject sends X-Debug-Sub (dev mode servers only).
func WithDebugSubject(sub string) Option {
	return func(c *HTTPClient) { c.debugSub = sub }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a client for the server at baseURL.
func NewHTTPClient(baseURL, deviceID string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		deviceID:   deviceID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// DeviceID returns the device identity sent with every request.
func (c *HTTPClient) DeviceID() string {
	return c.deviceID
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Do executes req with injected headers, retrying on 429.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return c.doWithRetry(ctx, req, &logger, correlationID, 0)
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	reqClone.Header.Set("X-Correlation-ID", correlationID)
	if c.deviceID != "" {
		reqClone.Header.Set("X-Device-ID", c.deviceID)
	}
	switch {
	case c.token != "":
		reqClone.Header.Set("Authorization", "Bearer "+c.token)
	case c.debugSub != "":
		reqClone.Header.Set("X-Debug-Sub", c.debugSub)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Debug().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	if resp.StatusCode == http.StatusTooManyRequests {
		return c.handleRateLimit(ctx, req, resp, logger, correlationID, retryCount)
	}
	return resp, nil
}

// handleRateLimit handles 429 Too Many Requests with exponential backoff
func (c *HTTPClient) handleRateLimit(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	if retryCount >= MaxRetries {
		logger.Warn().Msg("Rate limited - max retries exceeded")
		return nil, ErrRateLimited{RetryAfter: int(retryAfter.Seconds())}
	}

	if retryAfter == 0 {
		retryAfter = DefaultBackoff * time.Duration(1<<retryCount)
	}

	logger.Warn().
		Dur("retryAfter", retryAfter).
		Int("retryCount", retryCount).
		Str("rateLimitRemaining", resp.Header.Get("X-RateLimit-Remaining")).
		Msg("Rate limited - backing off")

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cloneRequest copies req so the body can be re-sent on retry
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		if k == "Authorization" || k == "X-Debug-Sub" {
			continue // re-injected
		}
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter parses integer seconds or an HTTP-date
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
