package aggregate

import (
	"errors"
	"fmt"
)

var (
	// ErrPrimaryFailed matches every *PrimaryError.
	ErrPrimaryFailed = errors.New("primary source failed")

	// ErrSourcePanicked wraps a panic recovered from a source function.
	ErrSourcePanicked = errors.New("source panicked")
)

// PrimaryError reports that the mandatory source failed.
// No partial result accompanies it.
type PrimaryError struct {
	Err error
}

// Error implements the error interface.
func (e *PrimaryError) Error() string {
	return fmt.Sprintf("aggregate: primary source failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PrimaryError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPrimaryFailed) match any PrimaryError.
func (e *PrimaryError) Is(target error) bool {
	return target == ErrPrimaryFailed
}

// OptionalError carries the swallowed cause of a best-effort failure.
// It is only ever exposed through Result.OptionalErr.
type OptionalError struct {
	Err error
}

// Error implements the error interface.
func (e *OptionalError) Error() string {
	return fmt.Sprintf("aggregate: optional source failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OptionalError) Unwrap() error {
	return e.Err
}
