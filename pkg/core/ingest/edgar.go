// Package ingest locates and downloads XBRL instance documents from SEC
// EDGAR. Site documentation: https://www.sec.gov/os/accessing-edgar-data
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// SECHost is the EDGAR web host. Index pages link relative to it.
	SECHost = "https://www.sec.gov"

	// Required User-Agent per SEC guidelines
	UserAgent = "finstat/1.0 (contact@example.com)"

	// SEC fair-access policy caps automated clients at 10 requests/second.
	defaultRequestsPerSecond = 10
	defaultMaxRetries        = 10
	defaultBackoff           = 100 * time.Millisecond
	defaultTimeout           = 30 * time.Second
	maxBackoff               = 30 * time.Second
)

// StatusError reports a non-200 response that was not retried, or that
// kept failing after every retry.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC returned status %d for %s", e.StatusCode, e.URL)
}

// retryable matches the status codes EDGAR uses for throttling and
// transient failures.
func retryable(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// ClientOptions tunes an EDGARClient. Zero values take the defaults.
type ClientOptions struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64 // negative disables rate limiting
	MaxRetries        int
	Backoff           time.Duration
}

// EDGARClient handles SEC EDGAR requests. It is safe for concurrent use;
// all goroutines share one rate limiter.
type EDGARClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewEDGARClient creates a new SEC EDGAR client.
func NewEDGARClient(opts ClientOptions, logger *slog.Logger) *EDGARClient {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = SECHost
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	limit := rate.Limit(opts.RequestsPerSecond)
	switch {
	case opts.RequestsPerSecond < 0:
		limit = rate.Inf
	case opts.RequestsPerSecond == 0:
		limit = defaultRequestsPerSecond
	}

	return &EDGARClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     logger,
	}
}

// BaseURL returns the host that relative index links resolve against.
func (c *EDGARClient) BaseURL() string { return c.baseURL }

// Get downloads url. Throttling and server errors are retried with
// exponential backoff; any other non-200 status fails immediately.
func (c *EDGARClient) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffFor(attempt)
			c.logger.Debug("retrying SEC request", "url", url, "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !retryable(se.StatusCode) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("SEC request failed after %d retries: %w", c.maxRetries, lastErr)
}

// backoffFor doubles the base backoff per attempt, capped at maxBackoff.
func (c *EDGARClient) backoffFor(attempt int) time.Duration {
	wait := c.backoff
	for i := 1; i < attempt && wait < maxBackoff; i++ {
		wait *= 2
	}
	return min(wait, maxBackoff)
}

func (c *EDGARClient) do(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// SEC requires User-Agent header
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SEC request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
