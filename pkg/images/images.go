// Package images pages through the backend's image list.
package images

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/pagekit/pkg/pagination"
)

// Endpoint is the backend path serving image pages.
const Endpoint = "/images"

// Image is one entry of the image list.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// API is the part of client.Client the fetcher needs.
type API interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error
}

// Fetcher adapts api to a pagination.FetchFunc requesting
// GET /images?page=<key>&limit=<size>.
func Fetcher(api API) pagination.FetchFunc[Image] {
	return func(ctx context.Context, key, size int) ([]Image, error) {
		query := url.Values{
			"page":  {strconv.Itoa(key)},
			"limit": {strconv.Itoa(size)},
		}

		var images []Image
		if err := api.GetJSON(ctx, Endpoint, query, &images); err != nil {
			return nil, fmt.Errorf("fetch images page %d: %w", key, err)
		}
		return images, nil
	}
}

// Repository creates image loaders sharing one backend.
type Repository struct {
	api      API
	pageSize int
}

// NewRepository creates a repository. pageSize <= 0 selects the loader default.
func NewRepository(api API, pageSize int) *Repository {
	if api == nil {
		panic("images: api cannot be nil")
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultConfig().PageSize
	}
	return &Repository{api: api, pageSize: pageSize}
}

// PageSize returns the number of images requested per page.
func (r *Repository) PageSize() int {
	return r.pageSize
}

// NewLoader returns a fresh loader over the image list. The caller owns it
// and must Close it.
func (r *Repository) NewLoader() *pagination.Loader[Image] {
	return pagination.NewLoader(Fetcher(r.api), pagination.Config{
		PageSize: r.pageSize,
		FirstKey: 1,
	})
}
