// Package client provides the shop API HTTP client with retries, rate
// limiting, response revalidation and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/cache"
	"github.com/Sternrassler/shop-admin-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client talks to the shop admin API.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the shop API, e.g. "https://shop.example.com/api".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	UserAgent string

	// Redis enables the revalidation cache and the shared rate limit
	// tracker. Both are skipped when nil.
	Redis *redis.Client

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "shop-admin-client/1.0",
		RequestTimeout: 30 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// New creates a new shop API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: base url must be http or https (got %q)", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("%w: user-agent is required", ErrInvalidConfig)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("%w: request timeout must be > 0 (got %s)", ErrInvalidConfig, cfg.RequestTimeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: retry max attempts must be >= 1 (got %d)", ErrInvalidConfig, cfg.Retry.MaxAttempts)
	}

	logger := log.With().Str("component", "shop-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}
	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger)
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// Do performs a request with rate limiting, revalidation, retries and
// error classification. Responses with status >= 400 are returned as
// *APIError, after retries for transient classes. Only GET and HEAD are
// retried on server and network failures; other methods only on 429.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.Method, endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(req.Method, endpoint, "rate_limited").Inc()
			errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &APIError{
				StatusCode: http.StatusTooManyRequests,
				Class:      ErrorClassRateLimit,
				Status:     "rate limit budget exhausted",
				Err:        ErrRateLimited,
			}
		}
	}

	var (
		cacheKey    cache.Key
		cachedEntry *cache.Entry
	)
	if c.cache != nil && req.Method == http.MethodGet {
		cacheKey = cache.Key{
			Endpoint:    req.URL.Path,
			QueryParams: req.URL.Query(),
			Scope:       cache.Scope(c.config.Token),
		}

		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && cache.ShouldMakeConditionalRequest(entry) {
			cachedEntry = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", entry.ETag).
				Msg("Making conditional request")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing shop API request")

	var resp *http.Response
	err := retryWithBackoff(ctx, c.config.Retry, func(attempt int) (ErrorClass, error) {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)
			}
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(req.Method, endpoint, "network_error").Inc()
			return retryable(req.Method, ErrorClassNetwork), &APIError{
				Class:  ErrorClassNetwork,
				Status: "request failed",
				Err:    err,
			}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, r.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		requestsTotal.WithLabelValues(req.Method, endpoint, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode >= 400 {
			apiErr := newAPIError(r)
			errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", r.StatusCode).
				Str("error_class", string(apiErr.Class)).
				Int("attempt", attempt).
				Msg("Shop API request error")
			return retryable(req.Method, apiErr.Class), apiErr
		}

		resp = r
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	if c.cache != nil && req.Method == http.MethodGet && resp.StatusCode == http.StatusOK &&
		(resp.Header.Get("ETag") != "" || resp.Header.Get("Last-Modified") != "") {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("read %s response: %w", endpoint, err)
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().Str("endpoint", endpoint).Dur("ttl", entry.TTL()).Msg("Cached response")
		}
	}

	return resp, nil
}

// newAPIError drains and closes the response body.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	return &APIError{
		StatusCode: resp.StatusCode,
		Class:      classifyStatus(resp.StatusCode),
		Message:    parseMessage(body),
		Status:     resp.Status,
	}
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.doJSON(ctx, http.MethodGet, path, query, nil, out)
	return err
}

// PatchJSON sends body as JSON and decodes a non-empty response into out.
// out may be nil.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	_, err := c.doJSON(ctx, http.MethodPatch, path, nil, body, out)
	return err
}

// Delete performs a DELETE request and returns the raw response body.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return data, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return data, nil
}

// Close releases the client's resources. The Redis client is owned by
// the caller and left open.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
