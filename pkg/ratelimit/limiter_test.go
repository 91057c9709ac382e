package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	l := New(Config{})
	if l.config.Burst != 1 {
		t.Errorf("Burst = %d, want 1", l.config.Burst)
	}
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait with unlimited rate failed: %v", err)
		}
	}
}

func TestLimiter_WaitWithinBurst(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 3, MaxWait: 0})

	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}

	err := l.Wait(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Wait after burst = %v, want ErrRateLimited", err)
	}
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.Reason != "budget" {
		t.Errorf("error = %#v, want budget LimitError", err)
	}
}

func TestLimiter_WaitDelays(t *testing.T) {
	l := New(Config{RequestsPerSecond: 20, Burst: 1, MaxWait: time.Second})

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second Wait took %v, want about 50ms", elapsed)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1, MaxWait: 5 * time.Second})
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestLimiter_BackendBlock(t *testing.T) {
	l := New(Config{MaxWait: 100 * time.Millisecond})

	l.Observe(http.StatusTooManyRequests, http.Header{HeaderRetry: {"30"}})
	if !l.State().Blocked(time.Now()) {
		t.Fatal("limiter should be blocked after 429 with Retry-After")
	}

	err := l.Wait(context.Background())
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.Reason != "backend" {
		t.Fatalf("Wait = %v, want backend LimitError", err)
	}
	if limitErr.RetryAfter < 29*time.Second {
		t.Errorf("RetryAfter = %v, want about 30s", limitErr.RetryAfter)
	}
}

func TestLimiter_ShortBackendBlockWaits(t *testing.T) {
	l := New(Config{MaxWait: time.Second})
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Observe(http.StatusServiceUnavailable, http.Header{HeaderRetry: {"0"}})
	l.mu.Lock()
	l.state.BlockedUntil = base.Add(40 * time.Millisecond)
	l.mu.Unlock()

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("Wait should sleep through a short backend block")
	}
}

func TestLimiter_ObserveIgnoresResponsesWithoutHeaders(t *testing.T) {
	l := New(DefaultConfig())
	l.Observe(http.StatusOK, http.Header{HeaderRemaining: {"7"}})
	l.Observe(http.StatusOK, http.Header{})

	if got := l.State().Remaining; got != 7 {
		t.Errorf("Remaining = %d, want 7", got)
	}
}
