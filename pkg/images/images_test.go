package images

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"github.com/Sternrassler/pagekit/internal/testutil"
	"github.com/Sternrassler/pagekit/pkg/client"
	"github.com/Sternrassler/pagekit/pkg/pagination"
	"github.com/Sternrassler/pagekit/pkg/ratelimit"
)

func newTestAPI(t *testing.T, backend *testutil.MockBackend) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(backend.URL())
	cfg.RateLimit = ratelimit.Config{}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

type stubAPI struct {
	query url.Values
	err   error
}

func (s *stubAPI) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	s.query = query
	return s.err
}

func TestFetcher_Query(t *testing.T) {
	api := &stubAPI{}
	if _, err := Fetcher(api)(context.Background(), 3, 25); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if api.query.Get("page") != "3" || api.query.Get("limit") != "25" {
		t.Errorf("query = %v, want page=3 limit=25", api.query)
	}
}

func TestFetcher_WrapsErrors(t *testing.T) {
	cause := errors.New("connection reset")
	_, err := Fetcher(&stubAPI{err: cause})(context.Background(), 2, 10)
	if !errors.Is(err, cause) {
		t.Errorf("fetch error = %v, want it to wrap %v", err, cause)
	}
}

func TestFetcher_DecodesPage(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	images, err := Fetcher(newTestAPI(t, backend))(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(images) != 4 {
		t.Fatalf("got %d images, want 4", len(images))
	}
	want := Image{ID: "11", URL: "https://images.test/11.jpg"}
	if images[0] != want {
		t.Errorf("images[0] = %+v, want %+v", images[0], want)
	}
}

func TestNewRepository_PageSize(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		want     int
	}{
		{name: "explicit", pageSize: 25, want: 25},
		{name: "zero uses default", pageSize: 0, want: 10},
		{name: "negative uses default", pageSize: -5, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRepository(&stubAPI{}, tt.pageSize).PageSize(); got != tt.want {
				t.Errorf("PageSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRepository_LoadsAllImages(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	loader := NewRepository(newTestAPI(t, backend), 10).NewLoader()
	defer loader.Close()

	ctx := context.Background()
	for i := 0; i < 5 && !loader.States().Append.EndReached; i++ {
		if err := loader.Append(ctx); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	items := loader.Items()
	if len(items) != 14 {
		t.Fatalf("loaded %d images, want 14", len(items))
	}
	for i, img := range items {
		want := Image{ID: strconv.Itoa(i + 1), URL: fmt.Sprintf("https://images.test/%d.jpg", i+1)}
		if img != want {
			t.Errorf("items[%d] = %+v, want %+v", i, img, want)
		}
	}
	if backend.RequestCount(Endpoint) != 2 {
		t.Errorf("backend requests = %d, want 2", backend.RequestCount(Endpoint))
	}
	if state := loader.States().Append; state.Status != pagination.StatusIdle || !state.EndReached {
		t.Errorf("append state = %+v, want idle with end reached", state)
	}
}

func TestRepository_BackendFailureSurfacesInState(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse(Endpoint, testutil.NewServerErrorResponse())

	loader := NewRepository(newTestAPI(t, backend), 10).NewLoader()
	defer loader.Close()

	err := loader.Append(context.Background())
	if !errors.Is(err, pagination.ErrFetchFailed) || !errors.Is(err, client.ErrRequestFailed) {
		t.Fatalf("Append error = %v, want fetch failure wrapping the backend error", err)
	}
	// The first append on an empty loader is the initial refresh.
	if state := loader.States().Refresh; state.Status != pagination.StatusError {
		t.Errorf("refresh status = %v, want error", state.Status)
	}
	if len(loader.Items()) != 0 {
		t.Errorf("items = %v, want none", loader.Items())
	}
}
