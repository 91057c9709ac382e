// Package pagination loads a keyed, logically unbounded list one page at a time.
//
// A Loader wraps a FetchFunc and keeps the pages it has fetched in a
// PageCache. Consumers drive it through three edges:
//
//   - Refresh replaces the cache with the page around an access position
//   - Append loads the page after the last cached page
//   - Prepend loads the page before the first cached page
//
// Each edge has its own LoadState and at most one fetch in flight. Concurrent
// calls on the same edge share the in-flight fetch, so the backing source sees
// a single request.
//
// Example usage:
//
//	loader := pagination.NewLoader(fetchImages, pagination.DefaultConfig())
//	defer loader.Close()
//
//	if err := loader.Append(ctx); err != nil {
//	    // the append edge is now in the error state; Retry re-fetches the same key
//	}
//	items := loader.Items()
//
// Page keys are integers starting at Config.FirstKey. A page whose result is
// empty, or shorter than the page size, ends forward pagination.
//
// After an invalidation, RefreshKey picks the key to reload so the consumer keeps
// its place: the anchor page's previous key plus one, else its next key minus
// one, else the first page.
package pagination
