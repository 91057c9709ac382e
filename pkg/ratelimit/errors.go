package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited matches every *LimitError.
var ErrRateLimited = errors.New("rate limited")

// LimitError reports a request rejected because it would wait too long.
type LimitError struct {
	// Reason is "budget" for the local token bucket or "backend" for a
	// backend-reported block.
	Reason     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %s", e.Reason, e.RetryAfter.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrRateLimited) match any LimitError.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}
