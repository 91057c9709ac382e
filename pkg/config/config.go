// Package config loads the pagekit server configuration from YAML and
// PAGEKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pagekit/pkg/aggregate"
	"github.com/Sternrassler/pagekit/pkg/cache"
	"github.com/Sternrassler/pagekit/pkg/client"
	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/ratelimit"
	"github.com/Sternrassler/pagekit/pkg/vehicles"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Redis     RedisConfig     `yaml:"redis"`
	Pager     PagerConfig     `yaml:"pager"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Log       LogConfig       `yaml:"log"`
}

// HTTPConfig configures the listening server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// ClientRPS and ClientBurst limit requests per client IP (0 = unlimited).
	ClientRPS   float64 `yaml:"clientRps"`
	ClientBurst int     `yaml:"clientBurst"`
}

// BackendConfig configures the outgoing client.
type BackendConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxWait           time.Duration `yaml:"maxWait"`
}

// RedisConfig configures the response cache. An empty Addr disables it.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	DefaultTTL time.Duration `yaml:"defaultTtl"`
	MaxTTL     time.Duration `yaml:"maxTtl"`
}

// PagerConfig configures image paging.
type PagerConfig struct {
	PageSize int `yaml:"pageSize"`
}

// AggregateConfig configures the vehicle listing.
type AggregateConfig struct {
	OptionalTimeout time.Duration `yaml:"optionalTimeout"`
	MemoTTL         time.Duration `yaml:"memoTtl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	rl := ratelimit.DefaultConfig()
	cc := cache.DefaultConfig()
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ClientRPS:       20,
			ClientBurst:     40,
		},
		Backend: BackendConfig{
			BaseURL:           "http://localhost:9000",
			UserAgent:         "pagekit/1.0",
			Timeout:           10 * time.Second,
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
			MaxWait:           rl.MaxWait,
		},
		Redis: RedisConfig{
			DefaultTTL: cc.DefaultTTL,
			MaxTTL:     cc.MaxTTL,
		},
		Pager: PagerConfig{PageSize: 10},
		Aggregate: AggregateConfig{
			OptionalTimeout: aggregate.DefaultConfig().OptionalTimeout,
			MemoTTL:         vehicles.DefaultConfig().MemoTTL,
		},
		Log: LogConfig{Level: string(logging.LevelInfo)},
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and then with environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from PAGEKIT_* variables returned by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("PAGEKIT_HTTP_ADDR", &cfg.HTTP.Addr)
	float("PAGEKIT_HTTP_CLIENT_RPS", &cfg.HTTP.ClientRPS)
	num("PAGEKIT_HTTP_CLIENT_BURST", &cfg.HTTP.ClientBurst)
	str("PAGEKIT_BACKEND_URL", &cfg.Backend.BaseURL)
	str("PAGEKIT_BACKEND_USER_AGENT", &cfg.Backend.UserAgent)
	dur("PAGEKIT_BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	float("PAGEKIT_BACKEND_RPS", &cfg.Backend.RequestsPerSecond)
	str("PAGEKIT_REDIS_ADDR", &cfg.Redis.Addr)
	str("PAGEKIT_REDIS_PASSWORD", &cfg.Redis.Password)
	num("PAGEKIT_REDIS_DB", &cfg.Redis.DB)
	num("PAGEKIT_PAGE_SIZE", &cfg.Pager.PageSize)
	dur("PAGEKIT_OPTIONAL_TIMEOUT", &cfg.Aggregate.OptionalTimeout)
	dur("PAGEKIT_MEMO_TTL", &cfg.Aggregate.MemoTTL)
	str("PAGEKIT_LOG_LEVEL", &cfg.Log.Level)
	boolean("PAGEKIT_LOG_PRETTY", &cfg.Log.Pretty)

	return errs
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs error
	if c.HTTP.Addr == "" {
		errs = multierr.Append(errs, errors.New("http.addr is required"))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierr.Append(errs, fmt.Errorf("backend.baseUrl must be an absolute http(s) URL (got %q)", c.Backend.BaseURL))
	}
	if c.Backend.UserAgent == "" {
		errs = multierr.Append(errs, errors.New("backend.userAgent is required"))
	}
	if c.Pager.PageSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("pager.pageSize must be positive (got %d)", c.Pager.PageSize))
	}
	if c.Redis.DB < 0 {
		errs = multierr.Append(errs, fmt.Errorf("redis.db must not be negative (got %d)", c.Redis.DB))
	}
	for name, d := range map[string]time.Duration{
		"backend.timeout":           c.Backend.Timeout,
		"aggregate.optionalTimeout": c.Aggregate.OptionalTimeout,
		"aggregate.memoTtl":         c.Aggregate.MemoTTL,
		"http.shutdownTimeout":      c.HTTP.ShutdownTimeout,
	} {
		if d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must not be negative (got %s)", name, d))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errs
}

// ClientConfig returns the backend client configuration. The caller sets
// Config.Redis when the cache is enabled.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.Backend.BaseURL,
		UserAgent: c.Backend.UserAgent,
		Timeout:   c.Backend.Timeout,
		Cache: cache.Config{
			DefaultTTL: c.Redis.DefaultTTL,
			MaxTTL:     c.Redis.MaxTTL,
		},
		RateLimit: ratelimit.Config{
			RequestsPerSecond: c.Backend.RequestsPerSecond,
			Burst:             c.Backend.Burst,
			MaxWait:           c.Backend.MaxWait,
		},
	}
}

// VehiclesConfig returns the vehicle repository configuration.
func (c Config) VehiclesConfig() vehicles.Config {
	return vehicles.Config{
		MemoTTL:   c.Aggregate.MemoTTL,
		Aggregate: aggregate.Config{OptionalTimeout: c.Aggregate.OptionalTimeout},
	}
}

// LoggingConfig returns the logger configuration writing to stderr.
func (c Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.Config{
		Level:  level,
		Pretty: c.Log.Pretty,
		Output: os.Stderr,
	}
}
