// Package provider is the HTTP transport shared by the embedding and answer-generation adapters.
// It owns credentials, throttling, per-call timeouts, status-code classification and retries.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	// DefaultTimeout bounds a single attempt when Config.Timeout is unset.
	DefaultTimeout = 30 * time.Second

	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"

	baseBackoff      = 500 * time.Millisecond
	maxBackoff       = 10 * time.Second
	maxRetryAfter    = 30 * time.Second
	maxResponseBytes = 8 << 20
	maxLoggedBody    = 64 << 10
)

// Config holds connection settings for one provider endpoint.
type Config struct {
	// Name identifies the provider in errors and logs, e.g. "openai-embeddings".
	Name string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds each attempt. The caller's context still applies.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts for rate-limited or unavailable responses.
	MaxRetries int

	// RequestsPerSecond enables proactive throttling when positive.
	RequestsPerSecond float64
}

// Client posts JSON to a provider and maps failures onto the models.ErrProvider* kinds.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	http       *http.Client
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for retries and malformed responses.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSleep replaces the backoff sleep. Tests use it to avoid real delays.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Client. BaseURL is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: base URL is required", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{},
		sleep:      sleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c, nil
}

// Name returns the provider name used in errors.
func (c *Client) Name() string { return c.name }

// PostJSON sends in as JSON to path and decodes a 2xx response into out.
// Rate-limited and unavailable responses are retried with exponential backoff up to MaxRetries;
// authentication failures and every other kind are returned immediately.
func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	for attempt := 0; ; attempt++ {
		err = c.do(ctx, path, body, out)
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return err
		}
		delay := backoff(attempt, models.RetryAfter(err))
		c.logger.Warn("provider call failed, retrying",
			zap.String("provider", c.name),
			zap.String("kind", models.Kind(err)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := c.sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, path string, body []byte, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", c.name, ctx.Err())
			}
			return c.fail(models.ErrProviderRateLimited, 0, 0, "", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.name, ctx.Err())
		}
		return c.fail(models.ErrProviderUnavailable, 0, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.name, ctx.Err())
		}
		return c.fail(models.ErrProviderUnavailable, resp.StatusCode, 0, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryAfter := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now())
		kind := classifyStatus(resp.StatusCode)
		return c.fail(kind, resp.StatusCode, retryAfter, truncateBody(data), errors.New(errorMessage(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logMalformed(resp.StatusCode, data, err)
		return c.fail(models.ErrProviderMalformed, resp.StatusCode, 0, truncateBody(data), fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Malformed reports a 2xx response whose shape the adapter could not use.
// The raw body is logged for diagnosis.
func (c *Client) Malformed(raw []byte, reason string) error {
	err := errors.New(reason)
	c.logMalformed(http.StatusOK, raw, err)
	return c.fail(models.ErrProviderMalformed, http.StatusOK, 0, truncateBody(raw), err)
}

func (c *Client) logMalformed(status int, body []byte, err error) {
	c.logger.Error("malformed provider response",
		zap.String("provider", c.name),
		zap.Int("status", status),
		zap.String("body", truncateBody(body)),
		zap.Error(err))
}

func (c *Client) fail(kind error, status int, retryAfter time.Duration, body string, cause error) error {
	return &models.ProviderError{
		Provider:   c.name,
		Kind:       kind,
		StatusCode: status,
		RetryAfter: retryAfter,
		Body:       body,
		Err:        cause,
	}
}

// classifyStatus maps a non-2xx status code to an error kind.
// 401 and 403 mean a missing or rejected credential, which is reported as unavailable.
func classifyStatus(code int) error {
	switch code {
	case http.StatusTooManyRequests:
		return models.ErrProviderRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrProviderUnavailable
	default:
		return models.ErrProviderFailed
	}
}

func retryable(err error) bool {
	var pe *models.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden {
		return false
	}
	return models.Retryable(pe)
}

// backoff returns the delay before retry number attempt+1.
// A provider-supplied Retry-After wins, capped at maxRetryAfter.
func backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > maxRetryAfter {
			return maxRetryAfter
		}
		return retryAfter
	}
	d := baseBackoff << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// errorMessage extracts {"error":{"message":...}} or {"error":"..."} from a provider body,
// falling back to the raw text.
func errorMessage(body []byte) string {
	var withObj struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &withObj) == nil && withObj.Error.Message != "" {
		return withObj.Error.Message
	}
	var withStr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &withStr) == nil && withStr.Error != "" {
		return withStr.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return utils.Truncate(msg, 512)
}

func truncateBody(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody])
	}
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
