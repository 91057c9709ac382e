// Package client provides the HTTP JSON client for the pagekit backend,
// with rate limiting, an optional Redis response cache and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pagekit/pkg/cache"
	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// maxErrorBody bounds how much of an error response ends up in APIError.Message.
const maxErrorBody = 512

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each request, including reading the body (0 = no limit).
	Timeout time.Duration

	// Redis enables the response cache when set. The client closes it on Close.
	Redis redis.UniversalClient

	// Cache configures the response cache.
	Cache cache.Config

	// RateLimit configures outgoing request pacing.
	RateLimit ratelimit.Config
}

// DefaultConfig returns a default configuration for baseURL without a response cache.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "pagekit/1.0",
		Timeout:   10 * time.Second,
		Cache:     cache.DefaultConfig(),
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// Client talks to the backend.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	redis      redis.UniversalClient
	cache      *cache.Manager
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		redis:      cfg.Redis,
		limiter:    ratelimit.New(cfg.RateLimit),
		config:     cfg,
		logger:     logging.NewLogger("client"),
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.Cache)
	}
	return c, nil
}

// Do sends req to the backend.
//
// GET responses are served from the cache while fresh and revalidated with
// conditional requests once stale. Error statuses are returned as responses,
// not errors; only transport failures and rate limit rejections produce an
// *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	start := time.Now()
	defer func() {
		backendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var (
		key    cache.Key
		cached *cache.Entry
	)
	if c.cache != nil && req.Method == http.MethodGet {
		key = cache.Key{Endpoint: endpoint, Query: req.URL.Query()}
		entry, err := c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && !entry.IsExpired() {
			backendRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
			return cache.EntryToResponse(req, entry), nil
		}
		if entry != nil && entry.CanRevalidate() {
			cached = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequests.Inc()
			c.logger.Debug().Str("endpoint", endpoint).Str("etag", entry.ETag).Msg("Making conditional request")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		class := ErrorClassNetwork
		if errors.Is(err, ratelimit.ErrRateLimited) {
			class = ErrorClassRateLimit
			backendRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		}
		backendErrorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &APIError{Endpoint: endpoint, Class: class, Err: err}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Str("method", req.Method).Msg("Executing backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		backendErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		backendRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{Endpoint: endpoint, Class: ErrorClassNetwork, Err: err}
	}

	c.limiter.Observe(resp.StatusCode, resp.Header)
	backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		fresh, _, err := c.cache.EntryFromResponse(resp)
		resp.Body.Close()
		if err == nil {
			if err := c.cache.Extend(ctx, key, fresh.Expires); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to extend cache entry")
			}
		}
		return cache.EntryToResponse(req, cached), nil
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		backendErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Backend request error")
		return resp, nil
	}

	if c.cache != nil && req.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
		c.store(ctx, key, resp)
	}

	return resp, nil
}

func (c *Client) store(ctx context.Context, key cache.Key, resp *http.Response) {
	entry, ok, err := c.cache.EntryFromResponse(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if !ok {
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
	}
}

// Get performs a GET request for endpoint with query relative to the base URL.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	u := c.baseURL.JoinPath(endpoint)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes a successful JSON body into out.
// Non-2xx statuses and undecodable bodies are returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	resp, err := c.Get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if class := classifyStatus(resp.StatusCode); class != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		backendErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Err:        err,
		}
	}
	return nil
}

// Ping checks that the response cache backend is reachable. It is a no-op
// without a cache.
func (c *Client) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases idle connections and the Redis client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()

	var errs error
	if c.redis != nil {
		errs = multierr.Append(errs, c.redis.Close())
	}
	return errs
}

// SetHTTPClient replaces the HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the response cache manager, or nil without Redis.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}
