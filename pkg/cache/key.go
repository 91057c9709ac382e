package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every Redis key written by this package.
const KeyPrefix = "pagekit"

// Key identifies one cached backend response.
type Key struct {
	// Endpoint is the request path, e.g. "/images".
	Endpoint string

	// Query holds the request's query parameters.
	Query url.Values
}

// String renders a deterministic Redis key.
// Format: pagekit:endpoint:name1=v1:name2=v2a,v2b
//
// Example:
//
//	pagekit:images:limit=10:page=2
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}

	return strings.Join(parts, ":")
}
