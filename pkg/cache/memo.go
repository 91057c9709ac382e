package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Memo caches computed values in process for a fixed TTL.
// Concurrent misses for the same key share one computation; errors are not cached.
// A Memo with a non-positive TTL calls fn every time.
type Memo[V any] struct {
	store *gocache.Cache
	group singleflight.Group
	ttl   time.Duration
}

// NewMemo creates a memo whose values live for ttl.
func NewMemo[V any](ttl time.Duration) *Memo[V] {
	m := &Memo[V]{ttl: ttl}
	if ttl > 0 {
		m.store = gocache.New(ttl, 2*ttl)
	}
	return m
}

// Do returns the value memoised under key, computing it with fn on a miss.
// The shared computation does not inherit the cancellation of whichever
// caller started it; cancelling ctx only ends this caller's wait.
func (m *Memo[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	if m.store == nil {
		return fn(ctx)
	}

	if v, ok := m.store.Get(key); ok {
		CacheHits.WithLabelValues("memo").Inc()
		return v.(V), nil
	}
	CacheMisses.WithLabelValues("memo").Inc()

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		v, err := fn(shared)
		if err != nil {
			return v, err
		}
		m.store.SetDefault(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Forget drops the value memoised under key.
func (m *Memo[V]) Forget(key string) {
	if m.store != nil {
		m.store.Delete(key)
	}
}

// Len returns the number of memoised values, including expired ones not yet evicted.
func (m *Memo[V]) Len() int {
	if m.store == nil {
		return 0
	}
	return m.store.ItemCount()
}
