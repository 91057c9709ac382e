// Package vehicles loads the rental vehicle list together with a
// best-effort recommendation.
package vehicles

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/pagekit/pkg/aggregate"
	"github.com/Sternrassler/pagekit/pkg/cache"
	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/optional"
	"github.com/rs/zerolog"
)

// Backend paths.
const (
	VehiclesEndpoint       = "/vehicles"
	RecommendationEndpoint = "/recommendation"
)

// Vehicle is a rentable vehicle.
type Vehicle struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Search narrows a listing to a rental period and location.
// Empty fields are not sent.
type Search struct {
	PickupDate     string `json:"pickupDate,omitempty"`
	PickupLocation string `json:"pickupLocation,omitempty"`
	ReturnDate     string `json:"returnDate,omitempty"`
	ReturnLocation string `json:"returnLocation,omitempty"`
}

// Query returns the search as backend query parameters.
func (s Search) Query() url.Values {
	q := url.Values{}
	for name, v := range map[string]string{
		"pickupDate":     s.PickupDate,
		"pickupLocation": s.PickupLocation,
		"returnDate":     s.ReturnDate,
		"returnLocation": s.ReturnLocation,
	} {
		if v != "" {
			q.Set(name, v)
		}
	}
	return q
}

// Key identifies the search for memoisation.
func (s Search) Key() string {
	return s.Query().Encode()
}

// Listing is the vehicle list with the recommended vehicle, if any.
type Listing struct {
	Recommended optional.Value[Vehicle] `json:"recommended"`
	Vehicles    []Vehicle               `json:"vehicles"`
}

type vehicleList struct {
	Vehicles []Vehicle `json:"vehicles"`
}

type recommendation struct {
	BannerText optional.Value[string]  `json:"bannerText"`
	Vehicle    optional.Value[Vehicle] `json:"vehicle"`
}

// API is the part of client.Client the repository needs.
type API interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error
}

// Config holds repository configuration.
type Config struct {
	// MemoTTL is how long a listing is reused per search (0 = always fetch).
	MemoTTL time.Duration

	Aggregate aggregate.Config
}

// DefaultConfig returns the default repository configuration.
func DefaultConfig() Config {
	return Config{
		MemoTTL:   30 * time.Second,
		Aggregate: aggregate.DefaultConfig(),
	}
}

// Repository loads listings from the backend. It is safe for concurrent use.
type Repository struct {
	api    API
	agg    *aggregate.Aggregator[Vehicle]
	memo   *cache.Memo[Listing]
	logger zerolog.Logger
}

// NewRepository creates a repository.
func NewRepository(api API, config Config) *Repository {
	if api == nil {
		panic("vehicles: api cannot be nil")
	}
	return &Repository{
		api:    api,
		agg:    aggregate.New[Vehicle](config.Aggregate),
		memo:   cache.NewMemo[Listing](config.MemoTTL),
		logger: logging.NewLogger("vehicles"),
	}
}

// VehiclesWithRecommendation fetches the vehicle list and the recommendation
// concurrently. It fails only when the vehicle list cannot be loaded; a failed
// or empty recommendation leaves Listing.Recommended absent.
func (r *Repository) VehiclesWithRecommendation(ctx context.Context, search Search) (Listing, error) {
	return r.memo.Do(ctx, search.Key(), func(ctx context.Context) (Listing, error) {
		res, err := r.agg.Aggregate(ctx, r.listVehicles(search), r.recommend(search))
		if err != nil {
			return Listing{}, fmt.Errorf("load vehicles: %w", err)
		}
		if res.OptionalErr != nil {
			r.logger.Warn().Err(res.OptionalErr).Str("search", search.Key()).Msg("Recommendation unavailable")
		}
		return Listing{Recommended: res.Optional, Vehicles: res.Primary}, nil
	})
}

// Forget drops the memoised listing for search.
func (r *Repository) Forget(search Search) {
	r.memo.Forget(search.Key())
}

func (r *Repository) listVehicles(search Search) aggregate.PrimaryFunc[Vehicle] {
	return func(ctx context.Context) ([]Vehicle, error) {
		var list vehicleList
		if err := r.api.GetJSON(ctx, VehiclesEndpoint, search.Query(), &list); err != nil {
			return nil, err
		}
		return list.Vehicles, nil
	}
}

func (r *Repository) recommend(search Search) aggregate.OptionalFunc[Vehicle] {
	return func(ctx context.Context) (optional.Value[Vehicle], error) {
		var rec recommendation
		if err := r.api.GetJSON(ctx, RecommendationEndpoint, search.Query(), &rec); err != nil {
			return optional.None[Vehicle](), err
		}
		if banner, ok := rec.BannerText.Get(); ok {
			r.logger.Debug().Str("banner", banner).Bool("vehicle", rec.Vehicle.IsPresent()).Msg("Recommendation received")
		}
		return rec.Vehicle, nil
	}
}
