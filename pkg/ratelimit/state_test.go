package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeaders(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		status        int
		header        http.Header
		wantFound     bool
		wantRemaining int
		wantBlocked   time.Duration
	}{
		{
			name:          "no headers",
			status:        200,
			header:        http.Header{},
			wantFound:     false,
			wantRemaining: -1,
		},
		{
			name:          "budget left",
			status:        200,
			header:        http.Header{HeaderRemaining: {"42"}, HeaderReset: {"30"}},
			wantFound:     true,
			wantRemaining: 42,
		},
		{
			name:          "budget exhausted blocks until reset",
			status:        200,
			header:        http.Header{HeaderRemaining: {"0"}, HeaderReset: {"15"}},
			wantFound:     true,
			wantRemaining: 0,
			wantBlocked:   15 * time.Second,
		},
		{
			name:          "retry-after seconds on 429",
			status:        429,
			header:        http.Header{HeaderRetry: {"5"}},
			wantFound:     true,
			wantRemaining: -1,
			wantBlocked:   5 * time.Second,
		},
		{
			name:          "retry-after date on 503",
			status:        503,
			header:        http.Header{HeaderRetry: {now.Add(time.Minute).Format(http.TimeFormat)}},
			wantFound:     true,
			wantRemaining: -1,
			wantBlocked:   time.Minute,
		},
		{
			name:          "retry-after ignored on success",
			status:        200,
			header:        http.Header{HeaderRetry: {"5"}},
			wantFound:     false,
			wantRemaining: -1,
		},
		{
			name:          "invalid values ignored",
			status:        429,
			header:        http.Header{HeaderRemaining: {"many"}, HeaderRetry: {"soon"}},
			wantFound:     false,
			wantRemaining: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, found := ParseHeaders(tt.status, tt.header, now)
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if got := state.TimeUntilUnblocked(now); got != tt.wantBlocked {
				t.Errorf("TimeUntilUnblocked = %v, want %v", got, tt.wantBlocked)
			}
			if state.Blocked(now) != (tt.wantBlocked > 0) {
				t.Errorf("Blocked = %v, want %v", state.Blocked(now), tt.wantBlocked > 0)
			}
		})
	}
}

func TestUnknownState(t *testing.T) {
	s := UnknownState()
	if s.Remaining != -1 || s.Blocked(time.Now()) {
		t.Errorf("UnknownState() = %+v, want unknown and unblocked", s)
	}
}
