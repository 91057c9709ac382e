package cache

import (
	"net/http"
	"time"
)

// Entry is a cached backend response.
type Entry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ETag is sent back as If-None-Match on revalidation.
	ETag string `json:"etag,omitempty"`

	// LastModified is sent back as If-Modified-Since when there is no ETag.
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry must be revalidated.
	Expires time.Time `json:"expires"`

	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired reports whether the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiry, or 0 when expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a conditional request can be built from e.
func (e *Entry) CanRevalidate() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
