// Package collection talks to the remote collection API: listing and creating
// records with retry, circuit breaking, and response caching.
package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pitabwire/mercura/internal/config"
	"github.com/pitabwire/mercura/model"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 10 << 20

// ListResult is one fetched collection: the records in upstream order plus
// the upstream's total count.
type ListResult struct {
	Items []model.Record
	Total int
}

// Client is an HTTP client for the remote collection API with a circuit
// breaker and retry on idempotent requests.
type Client struct {
	cfg     config.UpstreamConfig
	client  *http.Client
	breaker *Breaker
	logger  *zap.Logger
}

// NewClient creates a collection Client from upstream configuration.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		breaker: NewBreaker(cfg.CircuitBreaker),
		logger:  logger,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// List fetches a collection. The total count comes from the configured
// count header when the upstream sends it, otherwise from the number of
// items in the body.
func (c *Client) List(ctx context.Context, rctx *model.RequestContext, path string, query url.Values) (ListResult, error) {
	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	resp, body, err := c.executeWithRetry(ctx, rctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ListResult{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ListResult{}, model.NewNotFoundError(fmt.Sprintf("collection %s not found", path))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ListResult{}, c.statusError(path, resp.StatusCode)
	}

	var items []model.Record
	if err := json.Unmarshal(body, &items); err != nil {
		return ListResult{}, model.NewNetworkError(fmt.Sprintf("collection %s: malformed response body", path))
	}

	total := len(items)
	if h := resp.Header.Get(c.countHeader()); h != "" {
		if parsed, perr := strconv.Atoi(h); perr == nil && parsed >= 0 {
			total = parsed
		}
	}

	return ListResult{Items: items, Total: total}, nil
}

// Create posts a new record to a collection. Create requests are never
// retried; a failed POST may still have been applied upstream.
func (c *Client) Create(ctx context.Context, rctx *model.RequestContext, path string, record model.Record) (model.Record, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("collection: marshal record: %w", err)
	}

	resp, body, err := c.executeWithRetry(ctx, rctx, http.MethodPost, c.cfg.BaseURL+path, payload)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusConflict:
		return nil, model.NewConflictError(fmt.Sprintf("collection %s rejected duplicate record", path))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, model.NewBadRequestError(fmt.Sprintf("collection %s rejected record with status %d", path, resp.StatusCode))
	default:
		return nil, c.statusError(path, resp.StatusCode)
	}

	var created model.Record
	if len(body) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			// Some backends return the created record as a bare array.
			var arr []model.Record
			if err2 := json.Unmarshal(body, &arr); err2 == nil && len(arr) > 0 {
				created = arr[0]
			}
		}
	}
	if created == nil {
		created = record
	}
	return created, nil
}

// executeWithRetry performs the request with exponential backoff. Only
// idempotent methods are retried.
func (c *Client) executeWithRetry(ctx context.Context, rctx *model.RequestContext, method, reqURL string, body []byte) (*http.Response, []byte, error) {
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(method)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(c.cfg.Retry, attempt)
			select {
			case <-ctx.Done():
				return nil, nil, model.NewUpstreamTimeoutError()
			case <-time.After(delay):
			}
		}

		resp, respBody, err := c.executeOnce(ctx, rctx, method, reqURL, body)
		if err != nil {
			lastErr = err
			if !canRetry || !isRetryableError(err) {
				return nil, nil, err
			}
			c.logger.Debug("collection: retrying after error",
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Error(err),
			)
			continue
		}

		if isRetryableStatus(resp.StatusCode) && canRetry && attempt < maxAttempts-1 {
			c.logger.Debug("collection: retrying after status",
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Int("status", resp.StatusCode),
			)
			continue
		}

		return resp, respBody, nil
	}

	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, model.NewUpstreamUnavailableError()
}

// executeOnce performs a single HTTP request with circuit breaker protection.
// The response body is fully read and returned; resp.Body is closed.
func (c *Client) executeOnce(ctx context.Context, rctx *model.RequestContext, method, reqURL string, body []byte) (*http.Response, []byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, nil, model.NewUpstreamUnavailableError()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("collection: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rctx != nil && rctx.CorrelationID != "" {
		req.Header.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if ctx.Err() != nil {
			return nil, nil, model.NewUpstreamTimeoutError()
		}
		if isTimeoutError(err) {
			return nil, nil, model.NewUpstreamTimeoutError()
		}
		if isConnectionError(err) {
			return nil, nil, model.NewNetworkError("could not reach the collection API")
		}
		return nil, nil, model.NewNetworkError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, nil, model.NewNetworkError("could not read the collection API response")
	}

	// 4xx are not infrastructure failures, only 5xx count against the breaker.
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else if resp.StatusCode < 400 {
		c.breaker.RecordSuccess()
	}

	return resp, respBody, nil
}

func (c *Client) statusError(path string, status int) *model.ErrorEnvelope {
	if status == http.StatusGatewayTimeout {
		return model.NewUpstreamTimeoutError()
	}
	if status >= 500 {
		return model.NewUpstreamUnavailableError()
	}
	return model.NewBadRequestError(fmt.Sprintf("collection %s returned status %d", path, status))
}

func (c *Client) countHeader() string {
	if c.cfg.TotalCountHeader != "" {
		return c.cfg.TotalCountHeader
	}
	return "X-Total-Count"
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// --- classification helpers ---

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var envelope *model.ErrorEnvelope
	if errors.As(err, &envelope) {
		// Network blips are worth another attempt; breaker-open and
		// timeout envelopes are not.
		return envelope.Code == model.ErrNetworkError
	}
	return true
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			delay = cfg.BackoffMax
			break
		}
	}
	return delay
}
