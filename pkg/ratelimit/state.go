// Package ratelimit paces requests to the backend and to the server.
//
// Limiter combines a local token bucket (golang.org/x/time/rate) with the
// rate limit state the backend reports in its response headers. Requests
// that would have to wait longer than Config.MaxWait are rejected with
// ErrRateLimited instead of queueing. KeyedLimiter applies a token bucket per
// key, e.g. per client address.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response headers read by ParseHeaders.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderRetry     = "Retry-After"
)

// State is the rate limit state most recently reported by the backend.
type State struct {
	// Remaining is the request budget left in the current window (-1 = unknown).
	Remaining int `json:"remaining"`

	// ResetAt is when the backend's window resets.
	ResetAt time.Time `json:"reset_at"`

	// BlockedUntil is set from Retry-After on 429/503 responses, or when the
	// budget is exhausted.
	BlockedUntil time.Time `json:"blocked_until"`

	LastUpdate time.Time `json:"last_update"`
}

// UnknownState is the state before the backend reported anything.
func UnknownState() State {
	return State{Remaining: -1}
}

// Blocked reports whether requests must wait at now.
func (s State) Blocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns how long requests must wait at now.
func (s State) TimeUntilUnblocked(now time.Time) time.Duration {
	if d := s.BlockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ParseHeaders derives a State from a backend response.
// It reports false when the response carries no rate limit information.
func ParseHeaders(status int, h http.Header, now time.Time) (State, bool) {
	state := UnknownState()
	state.LastUpdate = now
	found := false

	if v := h.Get(HeaderRemaining); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			state.Remaining = n
			found = true
		}
	}
	if v := h.Get(HeaderReset); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			state.ResetAt = now.Add(time.Duration(secs) * time.Second)
			found = true
		}
	}

	if state.Remaining == 0 && !state.ResetAt.IsZero() {
		state.BlockedUntil = state.ResetAt
	}

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		if until, ok := parseRetryAfter(h.Get(HeaderRetry), now); ok {
			state.BlockedUntil = until
			found = true
		}
	}

	return state, found
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return time.Time{}, false
		}
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
