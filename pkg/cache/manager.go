package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the key was not found or the entry expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds cache manager configuration.
type Config struct {
	// DefaultTTL applies to responses without Cache-Control max-age or Expires.
	DefaultTTL time.Duration

	// MaxTTL caps the lifetime of any entry (0 = no cap).
	MaxTTL time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 30 * time.Second,
		MaxTTL:     10 * time.Minute,
	}
}

// Manager stores backend responses in Redis as JSON-encoded entries.
// Redis expires keys together with their entries.
type Manager struct {
	redis  redis.UniversalClient
	config Config
	logger zerolog.Logger
}

// NewManager creates a cache manager on top of redisClient.
func NewManager(redisClient redis.UniversalClient, config Config) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 30 * time.Second
	}
	return &Manager{
		redis:  redisClient,
		config: config,
		logger: logging.NewLogger("cache"),
	}
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Get returns the entry stored under key, or ErrCacheMiss.
// Expired entries are still returned when they can be revalidated, so the
// caller can send a conditional request; otherwise they count as a miss.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() && !entry.CanRevalidate() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	m.logger.Debug().Str("key", key.String()).Bool("expired", entry.IsExpired()).Msg("Cache hit")
	return &entry, nil
}

// Set stores entry under key.
// Revalidatable entries are kept for an extra DefaultTTL past expiry so a
// later request can still send a conditional request.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if entry.CanRevalidate() {
		ttl += m.config.DefaultTTL
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	m.logger.Debug().Str("key", key.String()).Dur("ttl", ttl).Msg("Cached response")
	return nil
}

// Delete removes the entry stored under key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Extend moves the expiry of the entry under key to expires, typically after a
// 304 Not Modified response.
func (m *Manager) Extend(ctx context.Context, key Key, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = m.clamp(expires)
	return m.Set(ctx, key, entry)
}

// clamp limits expires to MaxTTL from now.
func (m *Manager) clamp(expires time.Time) time.Time {
	if m.config.MaxTTL <= 0 {
		return expires
	}
	if limit := time.Now().Add(m.config.MaxTTL); expires.After(limit) {
		return limit
	}
	return expires
}
