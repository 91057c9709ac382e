package pagination

import "github.com/Sternrassler/pagekit/pkg/optional"

// Page is one fetched chunk of a paginated sequence plus its neighbor keys.
// Pages are immutable once produced.
type Page[T any] struct {
	// Key is the page key used to fetch this page.
	Key int `json:"key"`

	// Items are the fetched items in source order.
	Items []T `json:"items"`

	// PrevKey is the key of the logically previous page (None at the start).
	PrevKey optional.Value[int] `json:"prevKey"`

	// NextKey is the key of the logically next page (None when exhausted).
	NextKey optional.Value[int] `json:"nextKey"`
}

// NewPage builds the page for a fetch of key with the given page size.
// The first key has no previous page. A result shorter than pageSize,
// including an empty one, has no next page; with pageSize <= 0 only an
// empty result ends the sequence. Backends that return short pages before
// their real end therefore stop paging early unless pageSize is <= 0.
func NewPage[T any](key, firstKey, pageSize int, items []T) Page[T] {
	p := Page[T]{
		Key:   key,
		Items: make([]T, len(items)),
	}
	copy(p.Items, items)
	if key != firstKey {
		p.PrevKey = optional.Some(key - 1)
	}
	if len(items) > 0 && (pageSize <= 0 || len(items) >= pageSize) {
		p.NextKey = optional.Some(key + 1)
	}
	return p
}

// PageCache is an ordered collection of pages with unique keys.
// Order reflects fetch time per edge: Put adds at the back, PutFront at the front.
// Every mutation builds a new backing slice, so slices handed out earlier
// never observe a partial update.
type PageCache[T any] struct {
	pages []Page[T]
}

// NewPageCache returns a cache holding pages in the given order.
// Later duplicates of a key replace earlier ones.
func NewPageCache[T any](pages ...Page[T]) *PageCache[T] {
	c := &PageCache[T]{}
	for _, p := range pages {
		c.Put(p)
	}
	return c
}

// Put stores p at the back, evicting any page with the same key.
func (c *PageCache[T]) Put(p Page[T]) {
	next := make([]Page[T], 0, len(c.pages)+1)
	next = append(next, c.without(p.Key)...)
	c.pages = append(next, p)
}

// PutFront stores p at the front, evicting any page with the same key.
func (c *PageCache[T]) PutFront(p Page[T]) {
	rest := c.without(p.Key)
	next := make([]Page[T], 0, len(rest)+1)
	next = append(next, p)
	c.pages = append(next, rest...)
}

// Get returns the page stored under key.
func (c *PageCache[T]) Get(key int) (Page[T], bool) {
	for _, p := range c.pages {
		if p.Key == key {
			return p, true
		}
	}
	return Page[T]{}, false
}

// First returns the front page.
func (c *PageCache[T]) First() (Page[T], bool) {
	if len(c.pages) == 0 {
		return Page[T]{}, false
	}
	return c.pages[0], true
}

// Last returns the back page.
func (c *PageCache[T]) Last() (Page[T], bool) {
	if len(c.pages) == 0 {
		return Page[T]{}, false
	}
	return c.pages[len(c.pages)-1], true
}

// Len returns the number of cached pages.
func (c *PageCache[T]) Len() int {
	return len(c.pages)
}

// ItemCount returns the number of items across all cached pages.
func (c *PageCache[T]) ItemCount() int {
	n := 0
	for _, p := range c.pages {
		n += len(p.Items)
	}
	return n
}

// Pages returns a copy of the cached pages in order.
func (c *PageCache[T]) Pages() []Page[T] {
	return append([]Page[T](nil), c.pages...)
}

// Items returns the concatenated items of all cached pages.
func (c *PageCache[T]) Items() []T {
	items := make([]T, 0, c.ItemCount())
	for _, p := range c.pages {
		items = append(items, p.Items...)
	}
	return items
}

func (c *PageCache[T]) without(key int) []Page[T] {
	out := make([]Page[T], 0, len(c.pages))
	for _, p := range c.pages {
		if p.Key != key {
			out = append(out, p)
		}
	}
	return out
}
