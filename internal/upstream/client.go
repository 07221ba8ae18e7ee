package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ashwake/audiocache/internal/metrics"
)

// Sentinel errors for upstream failures.
var (
	// ErrInstanceExhausted means every supplied instance failed; it wraps
	// the last observed error.
	ErrInstanceExhausted = errors.New("all upstream instances exhausted")

	// ErrMalformedResponse means an upstream payload matched none of the
	// known response shapes.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Client talks to a set of interchangeable upstream catalog instances.
//
// Instances are caller-supplied per request: the trigger API carries the
// instance pool, so the client itself holds no instance state. Requests
// carry no timeout by default; cancellation is the caller's business via
// the context.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger

	// RateLimitWait is slept after an HTTP 429 before moving to the next
	// instance. NetworkWait is slept after a transport error. Exposed so
	// tests can shrink them.
	RateLimitWait time.Duration
	NetworkWait   time.Duration
}

// NewClient creates a new upstream client.
func NewClient(logger *log.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{},
		userAgent:     "audiocache",
		logger:        logger,
		RateLimitWait: 500 * time.Millisecond,
		NetworkWait:   200 * time.Millisecond,
	}
}

// tokenInvalid reports whether a 401 body carries the catalog's
// "token invalid" sub-code, which marks an instance-level auth failure
// rather than a fatal request error.
func tokenInvalid(body []byte) bool {
	var payload struct {
		SubStatus int `json:"subStatus"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.SubStatus == 11002 || payload.SubStatus == 11003
}

// FetchWithRetry requests path from the instance pool in round-robin
// order, up to twice per instance, and returns the first successful
// body.
//
// Failure handling per attempt:
//   - 429: wait RateLimitWait, advance to the next instance
//   - 401 with the token-invalid sub-code: advance (instance auth failure)
//   - 5xx: advance
//   - transport error: wait NetworkWait, advance; a context
//     cancellation is returned immediately, never retried
//   - any other non-2xx: remembered as the candidate error, advance
//
// When every attempt fails the returned error wraps
// ErrInstanceExhausted around the last observed failure.
func (c *Client) FetchWithRetry(ctx context.Context, instances []string, path string) ([]byte, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no instances supplied", ErrInstanceExhausted)
	}

	maxAttempts := 2 * len(instances)
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		instance := instances[attempt%len(instances)]
		url := strings.TrimRight(instance, "/") + path

		body, status, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("upstream request failed", "instance", instance, "error", err)
			metrics.RecordUpstreamAttempt("network_error")
			lastErr = err
			c.sleep(ctx, c.NetworkWait)
			continue
		}

		switch {
		case status >= 200 && status < 300:
			metrics.RecordUpstreamAttempt("success")
			return body, nil
		case status == http.StatusTooManyRequests:
			c.logger.Warn("upstream rate limited", "instance", instance)
			metrics.RecordUpstreamAttempt("rate_limited")
			lastErr = fmt.Errorf("instance %s: HTTP 429", instance)
			c.sleep(ctx, c.RateLimitWait)
		case status == http.StatusUnauthorized && tokenInvalid(body):
			c.logger.Warn("upstream token invalid", "instance", instance)
			metrics.RecordUpstreamAttempt("token_invalid")
			lastErr = fmt.Errorf("instance %s: token invalid", instance)
		case status >= 500:
			c.logger.Warn("upstream server error", "instance", instance, "status", status)
			metrics.RecordUpstreamAttempt("server_error")
			lastErr = fmt.Errorf("instance %s: HTTP %d", instance, status)
		default:
			metrics.RecordUpstreamAttempt("rejected")
			lastErr = fmt.Errorf("instance %s: HTTP %d", instance, status)
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrInstanceExhausted, lastErr)
}

// FetchURL performs a plain GET against an absolute URL. Used for direct
// stream downloads and DASH segments, where failover across instances
// does not apply.
func (c *Client) FetchURL(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
