package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/optional"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PrimaryFunc fetches the mandatory list.
type PrimaryFunc[T any] func(ctx context.Context) ([]T, error)

// OptionalFunc fetches the best-effort value. Returning None with a nil
// error means the source legitimately has nothing to offer.
type OptionalFunc[T any] func(ctx context.Context) (optional.Value[T], error)

// Config holds aggregator configuration.
type Config struct {
	// OptionalTimeout bounds the best-effort source (0 = only the caller's deadline).
	// The source must honour its context for the bound to take effect.
	OptionalTimeout time.Duration
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		OptionalTimeout: 5 * time.Second,
	}
}

// Result is the joined outcome of one successful aggregation.
type Result[T any] struct {
	// Primary is never nil on success.
	Primary []T `json:"primary"`

	// Optional is absent when the best-effort source failed or had no value.
	Optional optional.Value[T] `json:"optional"`

	// OptionalErr is the swallowed best-effort failure (*OptionalError), for diagnostics.
	OptionalErr error `json:"-"`
}

// Aggregator runs a mandatory and a best-effort source concurrently.
// It is safe for concurrent use and holds no state between calls.
type Aggregator[T any] struct {
	config Config
	logger zerolog.Logger
}

// New creates an aggregator.
func New[T any](config Config) *Aggregator[T] {
	if config.OptionalTimeout < 0 {
		config.OptionalTimeout = 0
	}
	return &Aggregator[T]{
		config: config,
		logger: logging.NewLogger("aggregate"),
	}
}

// unit is one supervised source invocation.
type unit struct {
	source Source
	run    func(ctx context.Context) error
	err    error
}

// Aggregate invokes both sources concurrently and waits until both settled.
//
// A primary failure is returned as *PrimaryError and discards the optional
// outcome. An optional failure only leaves Result.Optional absent.
// Cancelling ctx cancels both sources.
func (a *Aggregator[T]) Aggregate(ctx context.Context, fetchPrimary PrimaryFunc[T], fetchOptional OptionalFunc[T]) (Result[T], error) {
	if fetchPrimary == nil || fetchOptional == nil {
		panic("aggregate: source functions cannot be nil")
	}

	start := time.Now()
	defer func() {
		aggregateDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		primary []T
		opt     optional.Value[T]
	)

	primaryUnit := &unit{
		source: SourcePrimary,
		run: func(ctx context.Context) error {
			items, err := fetchPrimary(ctx)
			if err != nil {
				return err
			}
			primary = items
			return nil
		},
	}
	optionalUnit := &unit{
		source: SourceOptional,
		run: func(ctx context.Context) error {
			if a.config.OptionalTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.config.OptionalTimeout)
				defer cancel()
			}
			v, err := fetchOptional(ctx)
			if err != nil {
				return err
			}
			opt = v
			return nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.supervise(gctx, primaryUnit))
	g.Go(a.supervise(gctx, optionalUnit))
	_ = g.Wait()

	if primaryUnit.err != nil {
		aggregationsTotal.WithLabelValues("failed").Inc()
		a.logger.Error().Err(primaryUnit.err).Dur("duration", time.Since(start)).Msg("Aggregation failed")
		return Result[T]{}, &PrimaryError{Err: primaryUnit.err}
	}

	if primary == nil {
		primary = []T{}
	}
	res := Result[T]{Primary: primary}

	if optionalUnit.err != nil {
		res.OptionalErr = &OptionalError{Err: optionalUnit.err}
		aggregationsTotal.WithLabelValues("degraded").Inc()
	} else {
		res.Optional = opt
		aggregationsTotal.WithLabelValues("complete").Inc()
	}

	a.logger.Debug().
		Int("primary_items", len(res.Primary)).
		Bool("optional_present", res.Optional.IsPresent()).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	return res, nil
}

// supervise wraps u for the errgroup. Panics become errors, and only
// Mandatory failures are reported to the group, so a best-effort failure
// never cancels its sibling.
func (a *Aggregator[T]) supervise(ctx context.Context, u *unit) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: %v", ErrSourcePanicked, u.source, r)
			}
			u.err = err
			if err == nil {
				return
			}

			policy := PolicyFor(u.source)
			sourceFailuresTotal.WithLabelValues(string(u.source), policy.String()).Inc()
			if policy == BestEffort {
				a.logger.Warn().Err(err).Str("source", string(u.source)).Msg("Best-effort source failed, continuing without it")
				err = nil
			}
		}()
		return u.run(ctx)
	}
}
