// Package client implements the REST transport for the historical
// extraction API: basic-auth JSON requests returning the raw status code
// and body, leaving interpretation to the caller.
package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"extractor/internal/apperrors"
	"extractor/pkg/backoff"
)

const defaultRetries = 3

// MetricsRecorder is an optional interface for recording request metrics.
type MetricsRecorder interface {
	RecordAPIRequest(ctx context.Context, method string, statusCode int, durationSeconds float64)
}

// Client is a basic-auth HTTP client for the extraction API.
// Responses are returned as (statusCode, body); only transport-level
// failures (no response at all) surface as errors.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	retries    int
	policy     backoff.Policy
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// New creates a Client with a pooled transport.
func New(username, password string, timeout time.Duration, metrics MetricsRecorder) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		username: username,
		password: password,
		retries:  defaultRetries,
		policy:   backoff.Default,
		metrics:  metrics,
		logger:   slog.With("component", "client"),
	}
}

// Success reports whether an HTTP status code is in the 2xx range.
func Success(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// Get performs an authenticated GET. Transport errors and 5xx responses are
// retried with exponential backoff, since status polls are idempotent.
func (c *Client) Get(ctx context.Context, url string) (int, []byte, error) {
	var (
		code int
		body []byte
		err  error
	)
	for attempt := 1; ; attempt++ {
		code, body, err = c.do(ctx, http.MethodGet, url, nil)
		if err == nil && code < 500 {
			return code, body, nil
		}
		if attempt > c.retries || ctx.Err() != nil {
			break
		}
		delay := c.policy.Delay(attempt)
		c.logger.Warn("Retrying request", "url", url, "attempt", attempt, "delay", delay, "status", code, "error", err)
		select {
		case <-ctx.Done():
			return 0, nil, apperrors.Transport("client.get", ctx.Err())
		case <-time.After(delay):
		}
	}
	return code, body, err
}

// Post performs an authenticated POST. Not retried: job creation is not idempotent.
func (c *Client) Post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

// Put performs an authenticated PUT. Not retried: accept/reject is a
// single irreversible transition.
func (c *Client) Put(ctx context.Context, url string, body []byte) (int, []byte, error) {
	return c.do(ctx, http.MethodPut, url, body)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, url string) (int, []byte, error) {
	return c.do(ctx, http.MethodDelete, url, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, apperrors.Transport("client."+method, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAPIRequest(ctx, method, 0, time.Since(start).Seconds())
		}
		return 0, nil, apperrors.Transport("client."+method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if c.metrics != nil {
		c.metrics.RecordAPIRequest(ctx, method, resp.StatusCode, time.Since(start).Seconds())
	}
	if err != nil {
		return resp.StatusCode, nil, apperrors.Transport("client."+method, err)
	}

	return resp.StatusCode, respBody, nil
}
