package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate (<= 0 disables the local bucket).
	RequestsPerSecond float64

	// Burst is the bucket size.
	Burst int

	// MaxWait is the longest a request may be delayed before it is rejected.
	MaxWait time.Duration
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             10,
		MaxWait:           2 * time.Second,
	}
}

// Limiter gates outgoing requests. It is safe for concurrent use.
type Limiter struct {
	bucket *rate.Limiter
	config Config
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a limiter.
func New(config Config) *Limiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxWait < 0 {
		config.MaxWait = 0
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Limiter{
		bucket: rate.NewLimiter(limit, config.Burst),
		config: config,
		logger: logging.NewLogger("ratelimit"),
		now:    time.Now,
		state:  UnknownState(),
	}
}

// Wait blocks until a request may be sent, ctx is done, or the required
// delay exceeds MaxWait, in which case it returns a *LimitError.
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.State().TimeUntilUnblocked(l.now()); d > 0 {
		if d > l.config.MaxWait {
			rejectionsTotal.WithLabelValues("backend").Inc()
			l.logger.Warn().Dur("retry_after", d).Msg("Backend rate limit active, rejecting request")
			return &LimitError{Reason: "backend", RetryAfter: d}
		}
		waitsTotal.WithLabelValues("backend").Inc()
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}

	r := l.bucket.Reserve()
	if !r.OK() {
		rejectionsTotal.WithLabelValues("budget").Inc()
		return &LimitError{Reason: "budget", RetryAfter: l.config.MaxWait}
	}

	d := r.Delay()
	if d == 0 {
		return nil
	}
	if d > l.config.MaxWait {
		r.Cancel()
		rejectionsTotal.WithLabelValues("budget").Inc()
		l.logger.Warn().Dur("retry_after", d).Msg("Request budget exhausted, rejecting request")
		return &LimitError{Reason: "budget", RetryAfter: d}
	}

	waitsTotal.WithLabelValues("budget").Inc()
	l.logger.Debug().Dur("delay", d).Msg("Throttling request")
	if err := sleep(ctx, d); err != nil {
		r.Cancel()
		return err
	}
	return nil
}

// Observe updates the limiter from a backend response.
func (l *Limiter) Observe(status int, h http.Header) {
	state, ok := ParseHeaders(status, h, l.now())
	if !ok {
		return
	}

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()

	if state.Remaining >= 0 {
		backendRemaining.Set(float64(state.Remaining))
	}

	event := l.logger.Debug()
	if state.Blocked(state.LastUpdate) {
		event = l.logger.Warn()
	}
	event.
		Int("remaining", state.Remaining).
		Time("blocked_until", state.BlockedUntil).
		Msg("Backend rate limit state updated")
}

// State returns the last backend-reported state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
