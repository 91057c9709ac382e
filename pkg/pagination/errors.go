package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrClosed is returned by load operations after Close.
	ErrClosed = errors.New("loader closed")
)

// FetchError reports a failed page fetch on one edge.
// The cached pages are left untouched; retrying the same edge re-fetches Key.
type FetchError struct {
	Direction Direction
	Key       int
	Err       error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed (key %d): %v", e.Direction, e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFetchFailed) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
