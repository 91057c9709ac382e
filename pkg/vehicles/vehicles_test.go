package vehicles

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/pagekit/internal/testutil"
	"github.com/Sternrassler/pagekit/pkg/aggregate"
	"github.com/Sternrassler/pagekit/pkg/client"
	"github.com/Sternrassler/pagekit/pkg/optional"
	"github.com/Sternrassler/pagekit/pkg/ratelimit"
)

func newTestRepository(t *testing.T, backend *testutil.MockBackend, config Config) *Repository {
	t.Helper()
	cfg := client.DefaultConfig(backend.URL())
	cfg.RateLimit = ratelimit.Config{}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return NewRepository(c, config)
}

func noMemo() Config {
	return Config{Aggregate: aggregate.DefaultConfig()}
}

func TestSearch_Query(t *testing.T) {
	s := Search{PickupDate: "2026-11-01", PickupLocation: "MUC", ReturnDate: "2026-11-05"}

	q := s.Query()
	if q.Get("pickupDate") != "2026-11-01" || q.Get("pickupLocation") != "MUC" || q.Get("returnDate") != "2026-11-05" {
		t.Errorf("Query() = %v", q)
	}
	if q.Has("returnLocation") {
		t.Error("empty returnLocation should not be sent")
	}
	if got, want := s.Key(), "pickupDate=2026-11-01&pickupLocation=MUC&returnDate=2026-11-05"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	if (Search{}).Key() != "" {
		t.Errorf("empty search Key() = %q, want empty", (Search{}).Key())
	}
}

func TestRepository_VehiclesWithRecommendation(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	repo := newTestRepository(t, backend, noMemo())
	listing, err := repo.VehiclesWithRecommendation(context.Background(), Search{})
	if err != nil {
		t.Fatalf("VehiclesWithRecommendation failed: %v", err)
	}

	if len(listing.Vehicles) != 3 {
		t.Fatalf("got %d vehicles, want 3", len(listing.Vehicles))
	}
	if listing.Vehicles[0] != (Vehicle{ID: "v1", Name: "Compact", Price: 29.5}) {
		t.Errorf("Vehicles[0] = %+v", listing.Vehicles[0])
	}
	rec, ok := listing.Recommended.Get()
	if !ok || rec.ID != "v2" {
		t.Errorf("Recommended = %v, want v2", listing.Recommended)
	}
}

func TestRepository_RecommendationIsBestEffort(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *testutil.MockBackend)
	}{
		{
			name:  "no recommended vehicle",
			setup: func(b *testutil.MockBackend) { b.SetRecommendation(nil) },
		},
		{
			name: "server error",
			setup: func(b *testutil.MockBackend) {
				b.SetResponse(RecommendationEndpoint, testutil.NewServerErrorResponse())
			},
		},
		{
			name: "not found",
			setup: func(b *testutil.MockBackend) {
				b.SetResponse(RecommendationEndpoint, testutil.MockResponse{StatusCode: 404})
			},
		},
		{
			name: "malformed body",
			setup: func(b *testutil.MockBackend) {
				b.SetResponse(RecommendationEndpoint, testutil.MockResponse{StatusCode: 200, Body: "<html>"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewMockBackend()
			defer backend.Close()
			tt.setup(backend)

			repo := newTestRepository(t, backend, noMemo())
			listing, err := repo.VehiclesWithRecommendation(context.Background(), Search{})
			if err != nil {
				t.Fatalf("VehiclesWithRecommendation failed: %v", err)
			}
			if listing.Recommended.IsPresent() {
				t.Errorf("Recommended = %v, want None", listing.Recommended)
			}
			if len(listing.Vehicles) != 3 {
				t.Errorf("got %d vehicles, want 3", len(listing.Vehicles))
			}
		})
	}
}

func TestRepository_VehicleListFailure(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse(VehiclesEndpoint, testutil.NewServerErrorResponse())

	repo := newTestRepository(t, backend, noMemo())
	listing, err := repo.VehiclesWithRecommendation(context.Background(), Search{})

	if !errors.Is(err, aggregate.ErrPrimaryFailed) {
		t.Fatalf("error = %v, want ErrPrimaryFailed", err)
	}
	if client.ClassOf(err) != client.ErrorClassServer {
		t.Errorf("ClassOf(err) = %q, want server", client.ClassOf(err))
	}
	if listing.Recommended.IsPresent() || listing.Vehicles != nil {
		t.Errorf("listing = %+v, want zero value", listing)
	}
}

func TestRepository_ForwardsSearch(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	repo := newTestRepository(t, backend, noMemo())
	search := Search{PickupDate: "2026-11-01", PickupLocation: "MUC", ReturnDate: "2026-11-05", ReturnLocation: "BER"}
	if _, err := repo.VehiclesWithRecommendation(context.Background(), search); err != nil {
		t.Fatalf("VehiclesWithRecommendation failed: %v", err)
	}

	for _, endpoint := range []string{VehiclesEndpoint, RecommendationEndpoint} {
		if got := backend.LastQuery(endpoint).Encode(); got != search.Key() {
			t.Errorf("%s query = %q, want %q", endpoint, got, search.Key())
		}
	}
}

func TestRepository_Memoisation(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	repo := newTestRepository(t, backend, Config{MemoTTL: time.Minute})
	ctx := context.Background()
	muc := Search{PickupLocation: "MUC"}

	for i := 0; i < 3; i++ {
		if _, err := repo.VehiclesWithRecommendation(ctx, muc); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if got := backend.RequestCount(VehiclesEndpoint); got != 1 {
		t.Errorf("vehicle requests = %d, want 1", got)
	}

	if _, err := repo.VehiclesWithRecommendation(ctx, Search{PickupLocation: "BER"}); err != nil {
		t.Fatalf("other search failed: %v", err)
	}
	if got := backend.RequestCount(VehiclesEndpoint); got != 2 {
		t.Errorf("vehicle requests after new search = %d, want 2", got)
	}

	repo.Forget(muc)
	if _, err := repo.VehiclesWithRecommendation(ctx, muc); err != nil {
		t.Fatalf("call after Forget failed: %v", err)
	}
	if got := backend.RequestCount(VehiclesEndpoint); got != 3 {
		t.Errorf("vehicle requests after Forget = %d, want 3", got)
	}
}

func TestRepository_FailuresAreNotMemoised(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	var calls atomic.Int32
	backend.SetHandler(VehiclesEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"vehicles":[{"id":"v9","name":"Bus","price":120}]}`))
	})

	repo := newTestRepository(t, backend, Config{MemoTTL: time.Minute})
	ctx := context.Background()

	if _, err := repo.VehiclesWithRecommendation(ctx, Search{}); err == nil {
		t.Fatal("first call should fail")
	}
	listing, err := repo.VehiclesWithRecommendation(ctx, Search{})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(listing.Vehicles) != 1 || listing.Vehicles[0].ID != "v9" {
		t.Errorf("Vehicles = %+v, want [v9]", listing.Vehicles)
	}
}

func TestNewViewState(t *testing.T) {
	compact := Vehicle{ID: "v1", Name: "Compact", Price: 29.5}

	tests := []struct {
		name    string
		listing Listing
		err     error
		want    ViewState
	}{
		{
			name:    "with recommendation",
			listing: Listing{Recommended: optional.Some(compact), Vehicles: []Vehicle{compact}},
			want:    ViewState{Recommended: optional.Some(compact), Vehicles: []Vehicle{compact}},
		},
		{
			name:    "without recommendation",
			listing: Listing{Vehicles: []Vehicle{compact}},
			want:    ViewState{Vehicles: []Vehicle{compact}},
		},
		{
			name: "failure",
			err:  errors.New("load vehicles: boom"),
			want: ViewState{Failed: true, Error: "load vehicles: boom", Vehicles: []Vehicle{}},
		},
		{
			name: "empty listing",
			want: ViewState{Vehicles: []Vehicle{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewViewState(tt.listing, tt.err)
			if got.Loading != tt.want.Loading || got.Failed != tt.want.Failed || got.Error != tt.want.Error {
				t.Errorf("NewViewState() = %+v, want %+v", got, tt.want)
			}
			if got.Recommended != tt.want.Recommended {
				t.Errorf("Recommended = %v, want %v", got.Recommended, tt.want.Recommended)
			}
			if got.Vehicles == nil || len(got.Vehicles) != len(tt.want.Vehicles) {
				t.Errorf("Vehicles = %#v, want %#v", got.Vehicles, tt.want.Vehicles)
			}
		})
	}
}

func TestLoadingView(t *testing.T) {
	v := LoadingView()
	if !v.Loading || v.Failed || v.Recommended.IsPresent() {
		t.Errorf("LoadingView() = %+v", v)
	}
}
