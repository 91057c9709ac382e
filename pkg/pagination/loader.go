package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/optional"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// FetchFunc fetches up to size items of the page identified by key.
// A result shorter than size, in particular an empty one, means there is no
// more data after key. This is stricter than stopping on an empty page only:
// a backend that returns short pages in the middle of its sequence stops
// paging early, so such a backend should pad its pages or report size items.
type FetchFunc[T any] func(ctx context.Context, key, size int) ([]T, error)

// Config holds loader configuration.
type Config struct {
	// PageSize is the number of items requested per fetch.
	PageSize int

	// FirstKey is the key of the first page. It must be positive.
	FirstKey int
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: 10,
		FirstKey: 1,
	}
}

// Loader fetches pages of a backing source on demand and caches them.
//
// Each edge (refresh, prepend, append) has at most one fetch in flight;
// concurrent calls for the same edge share that fetch and its result. A
// shared fetch is cancelled only after every caller waiting on it has given
// up. The cache is only written by the completion of an in-flight fetch, and
// readers always get copies.
type Loader[T any] struct {
	fetch  FetchFunc[T]
	config Config
	logger zerolog.Logger
	group  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu orders observer calls; it is taken before mu is released.
	notifyMu sync.Mutex

	mu         sync.Mutex
	cache      *PageCache[T]
	states     LoadStates
	inflight   map[Direction]bool
	waiters    map[Direction]int
	cancels    map[Direction]context.CancelFunc
	generation uint64
	lastAnchor optional.Value[int]
	closed     bool
	observer   func(Snapshot[T])
}

// NewLoader creates a loader backed by fetch.
func NewLoader[T any](fetch FetchFunc[T], config Config) *Loader[T] {
	if fetch == nil {
		panic("fetch function cannot be nil")
	}
	if config.PageSize <= 0 {
		config.PageSize = 10
	}
	if config.FirstKey <= 0 {
		config.FirstKey = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader[T]{
		fetch:    fetch,
		config:   config,
		logger:   logging.NewLogger("pagination"),
		ctx:      ctx,
		cancel:   cancel,
		cache:    NewPageCache[T](),
		inflight: make(map[Direction]bool),
		waiters:  make(map[Direction]int),
		cancels:  make(map[Direction]context.CancelFunc),
	}
}

// Load fetches the page for key without touching the cache.
// None loads the first page.
func (l *Loader[T]) Load(ctx context.Context, key optional.Value[int]) (Page[T], error) {
	k := key.OrElse(l.config.FirstKey)
	items, err := l.fetch(ctx, k, l.config.PageSize)
	if err != nil {
		return Page[T]{}, err
	}
	return NewPage(k, l.config.FirstKey, l.config.PageSize, items), nil
}

// Refresh reloads the sequence around anchor, a position in Items().
// On success the cache is replaced by the fetched page; on failure the
// previous cache is kept and the refresh edge reports the error.
func (l *Loader[T]) Refresh(ctx context.Context, anchor optional.Value[int]) error {
	return l.run(ctx, DirectionRefresh, func() (optional.Value[int], bool) {
		l.lastAnchor = anchor
		return RefreshKey(l.cache.Pages(), anchor), true
	})
}

// Append loads the page after the last cached page. On an empty cache it
// performs the initial refresh. It does nothing once the end is reached.
func (l *Loader[T]) Append(ctx context.Context) error {
	l.mu.Lock()
	empty := l.cache.Len() == 0
	l.mu.Unlock()
	if empty {
		return l.Refresh(ctx, optional.None[int]())
	}

	return l.run(ctx, DirectionAppend, func() (optional.Value[int], bool) {
		last, ok := l.cache.Last()
		if !ok {
			return optional.None[int](), false
		}
		next, ok := last.NextKey.Get()
		return optional.Some(next), ok
	})
}

// Prepend loads the page before the first cached page.
// It does nothing when the first cached page has no previous key.
func (l *Loader[T]) Prepend(ctx context.Context) error {
	return l.run(ctx, DirectionPrepend, func() (optional.Value[int], bool) {
		first, ok := l.cache.First()
		if !ok {
			return optional.None[int](), false
		}
		prev, ok := first.PrevKey.Get()
		return optional.Some(prev), ok
	})
}

// Retry re-attempts every edge currently in the error state.
// A failed refresh is retried with its last anchor.
func (l *Loader[T]) Retry(ctx context.Context) error {
	l.mu.Lock()
	states := l.states
	anchor := l.lastAnchor
	l.mu.Unlock()

	var errs error
	if states.Refresh.Status == StatusError {
		errs = multierr.Append(errs, l.Refresh(ctx, anchor))
	}
	if states.Prepend.Status == StatusError {
		errs = multierr.Append(errs, l.Prepend(ctx))
	}
	if states.Append.Status == StatusError {
		errs = multierr.Append(errs, l.Append(ctx))
	}
	return errs
}

// Pages returns a copy of the cached pages.
func (l *Loader[T]) Pages() []Page[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Pages()
}

// Items returns the concatenated items of all cached pages.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Items()
}

// ItemCount returns the number of cached items.
func (l *Loader[T]) ItemCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.ItemCount()
}

// States returns the current load state of every edge.
func (l *Loader[T]) States() LoadStates {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states
}

// Snapshot returns pages and states observed at the same instant.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Observe registers fn to receive a snapshot after every state or cache change.
// Snapshots are delivered in order and fn runs without the cache lock held,
// but fn must not start loads synchronously. Pass nil to stop observing.
func (l *Loader[T]) Observe(fn func(Snapshot[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = fn
}

// Close cancels all outstanding fetches. Their results are discarded.
func (l *Loader[T]) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	return nil
}

// run executes one load on dir, joining a fetch already in flight on dir.
// plan is called with l.mu held and returns the key to load, or false when
// there is nothing to load.
func (l *Loader[T]) run(ctx context.Context, dir Direction, plan func() (optional.Value[int], bool)) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.inflight[dir] {
		pageFetchesCoalesced.WithLabelValues(string(dir)).Inc()
		l.logger.Debug().Str("direction", string(dir)).Msg("Joining in-flight fetch")
	}
	l.waiters[dir]++
	l.mu.Unlock()

	ch := l.group.DoChan(string(dir), func() (any, error) {
		return nil, l.execute(dir, plan)
	})

	select {
	case res := <-ch:
		l.leave(dir)
		return res.Err
	case <-ctx.Done():
		l.leave(dir)
		return ctx.Err()
	}
}

// leave drops one caller waiting on dir and cancels the fetch on dir once
// nobody is left waiting for it.
func (l *Loader[T]) leave(dir Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waiters[dir]--
	if l.waiters[dir] > 0 {
		return
	}
	if cancel := l.cancels[dir]; cancel != nil {
		cancel()
	}
}

func (l *Loader[T]) execute(dir Direction, plan func() (optional.Value[int], bool)) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	key, ok := plan()
	if !ok {
		l.mu.Unlock()
		l.logger.Debug().Str("direction", string(dir)).Msg("No page to load")
		return nil
	}
	if l.waiters[dir] == 0 {
		l.mu.Unlock()
		l.logger.Debug().Str("direction", string(dir)).Msg("All callers gone before fetch")
		return context.Canceled
	}
	generation := l.generation
	fetchCtx, cancel := context.WithCancel(l.ctx)
	defer cancel()
	l.cancels[dir] = cancel
	l.inflight[dir] = true
	l.states.set(dir, Loading())
	l.unlockAndNotify(true)

	keyValue := key.OrElse(l.config.FirstKey)
	l.logger.Debug().
		Str("direction", string(dir)).
		Int("key", keyValue).
		Int("page_size", l.config.PageSize).
		Msg("Fetching page")

	start := time.Now()
	page, err := l.Load(fetchCtx, key)
	pageFetchDuration.WithLabelValues(string(dir)).Observe(time.Since(start).Seconds())

	l.mu.Lock()
	l.inflight[dir] = false
	delete(l.cancels, dir)
	changed, err := l.applyLocked(fetchCtx, dir, generation, keyValue, page, err)
	l.unlockAndNotify(changed)
	return err
}

// applyLocked commits the outcome of one fetch and reports whether the
// cache or states changed. generation only moves when a refresh commits, so
// an edge fetch planned against a cache that has since been replaced is
// discarded and its edge goes back to idle.
func (l *Loader[T]) applyLocked(fetchCtx context.Context, dir Direction, generation uint64, key int, page Page[T], err error) (bool, error) {
	if fetchCtx.Err() != nil {
		pageFetchesTotal.WithLabelValues(string(dir), "discarded").Inc()
		l.logger.Debug().Str("direction", string(dir)).Int("key", key).Msg("Fetch cancelled, result discarded")
		if l.closed {
			return false, ErrClosed
		}
		l.states.set(dir, l.idleStateLocked(dir))
		return true, fetchCtx.Err()
	}

	if generation != l.generation {
		pageFetchesTotal.WithLabelValues(string(dir), "discarded").Inc()
		l.logger.Debug().Str("direction", string(dir)).Int("key", key).Msg("Cache refreshed during fetch, result discarded")
		l.states.set(dir, l.idleStateLocked(dir))
		return true, nil
	}

	if err != nil {
		pageFetchesTotal.WithLabelValues(string(dir), "error").Inc()
		l.logger.Warn().Err(err).Str("direction", string(dir)).Int("key", key).Msg("Page fetch failed")
		fetchErr := &FetchError{Direction: dir, Key: key, Err: err}
		l.states.set(dir, Failed(fetchErr))
		return true, fetchErr
	}

	outcome := "ok"
	if len(page.Items) == 0 {
		outcome = "empty"
	}
	pageFetchesTotal.WithLabelValues(string(dir), outcome).Inc()

	switch dir {
	case DirectionRefresh:
		l.cache = NewPageCache(page)
		l.generation++
		l.states.Refresh = Idle(false)
		// Edges still fetching against the old cache stay loading until
		// their result comes back and is discarded.
		if !l.inflight[DirectionPrepend] {
			l.states.Prepend = l.idleStateLocked(DirectionPrepend)
		}
		if !l.inflight[DirectionAppend] {
			l.states.Append = l.idleStateLocked(DirectionAppend)
		}
		l.logger.Info().Int("key", page.Key).Int("items", len(page.Items)).Msg("Refresh complete")
	case DirectionPrepend:
		l.cache.PutFront(page)
		l.states.Prepend = Idle(!page.PrevKey.IsPresent())
	case DirectionAppend:
		l.cache.Put(page)
		l.states.Append = Idle(!page.NextKey.IsPresent())
	}

	l.logger.Debug().
		Str("direction", string(dir)).
		Int("key", page.Key).
		Int("items", len(page.Items)).
		Int("cached_pages", l.cache.Len()).
		Msg("Page loaded")
	return true, nil
}

// idleStateLocked returns the idle state of dir as seen from the current cache.
func (l *Loader[T]) idleStateLocked(dir Direction) LoadState {
	switch dir {
	case DirectionPrepend:
		if first, ok := l.cache.First(); ok {
			return Idle(!first.PrevKey.IsPresent())
		}
	case DirectionAppend:
		if last, ok := l.cache.Last(); ok {
			return Idle(!last.NextKey.IsPresent())
		}
	}
	return Idle(false)
}

func (l *Loader[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Pages:  l.cache.Pages(),
		States: l.states,
	}
}

// unlockAndNotify releases l.mu and, when changed, hands a snapshot taken
// under the lock to the observer. notifyMu is acquired before l.mu is
// released so observers see snapshots in commit order.
func (l *Loader[T]) unlockAndNotify(changed bool) {
	if !changed || l.observer == nil {
		l.mu.Unlock()
		return
	}
	fn := l.observer
	snap := l.snapshotLocked()
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()
	fn(snap)
}
