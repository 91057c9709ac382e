// Package cache has two layers.
//
// Manager keeps backend HTTP responses in Redis so the client can answer
// repeated requests without a round trip and revalidate stale entries with
// conditional requests:
//
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//	key := cache.Key{Endpoint: "/images", Query: url.Values{"page": {"2"}, "limit": {"10"}}}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//	    // fetch from the backend, then manager.EntryFromResponse + manager.Set
//	}
//
// Entry expiry follows Cache-Control max-age, then Expires, then
// Config.DefaultTTL, capped by Config.MaxTTL. Entries carrying an ETag or
// Last-Modified outlive their expiry by DefaultTTL so they can be revalidated.
//
// Memo keeps computed values in process (github.com/patrickmn/go-cache) and
// coalesces concurrent misses. Repositories use it to memoise aggregations
// per query:
//
//	memo := cache.NewMemo[vehicles.Listing](time.Minute)
//	listing, err := memo.Do(ctx, search.Key(), load)
//
// # Metrics
//
//   - pagekit_cache_hits_total{layer} - hits by layer (redis, memo)
//   - pagekit_cache_misses_total{layer} - misses by layer
//   - pagekit_cache_errors_total{operation} - Redis operation errors
//   - pagekit_cache_conditional_requests_total - conditional requests sent
//   - pagekit_cache_not_modified_total - 304 responses served from cache
package cache
