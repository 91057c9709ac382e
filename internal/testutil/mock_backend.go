// Package testutil provides a mock pagekit backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockVehicle is the wire shape of a vehicle.
type MockVehicle struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MockBackend serves /images, /vehicles and /recommendation from in-memory data.
// Handlers set with SetHandler or SetResponse take precedence.
type MockBackend struct {
	server *httptest.Server

	mu             sync.RWMutex
	handlers       map[string]http.HandlerFunc
	imageCount     int
	vehicles       []MockVehicle
	recommendation *MockVehicle
	bannerText     string

	requests    map[string]int
	conditional int
	lastQuery   map[string]url.Values
	lastHeader  http.Header
}

// NewMockBackend starts a mock backend with 14 images, three vehicles and a recommendation.
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		handlers:   make(map[string]http.HandlerFunc),
		imageCount: 14,
		vehicles: []MockVehicle{
			{ID: "v1", Name: "Compact", Price: 29.5},
			{ID: "v2", Name: "Sedan", Price: 45},
			{ID: "v3", Name: "Van", Price: 80.25},
		},
		recommendation: &MockVehicle{ID: "v2", Name: "Sedan", Price: 45},
		bannerText:     "Recommended for you",
		requests:       make(map[string]int),
		lastQuery:      make(map[string]url.Values),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.URL.Path]++
		m.lastQuery[r.URL.Path] = r.URL.Query()
		m.lastHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			m.conditional++
		}
		handler, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if ok {
			handler(w, r)
			return
		}

		switch r.URL.Path {
		case "/images":
			m.serveImages(w, r)
		case "/vehicles":
			m.serveVehicles(w, r)
		case "/recommendation":
			m.serveRecommendation(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return m
}

// URL returns the backend base URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts the backend down.
func (m *MockBackend) Close() {
	m.server.Close()
}

// SetImageCount sets how many images /images serves in total.
func (m *MockBackend) SetImageCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageCount = n
}

// SetVehicles replaces the vehicles served by /vehicles.
func (m *MockBackend) SetVehicles(vehicles []MockVehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles = vehicles
}

// SetRecommendation sets the recommended vehicle; nil serves a null vehicle.
func (m *MockBackend) SetRecommendation(v *MockVehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommendation = v
}

// SetHandler overrides the handler for path.
func (m *MockBackend) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse makes path answer with resp.
func (m *MockBackend) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received for path.
func (m *MockBackend) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// ConditionalCount returns the number of conditional requests received.
func (m *MockBackend) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditional
}

// LastQuery returns the query of the last request for path.
func (m *MockBackend) LastQuery(path string) url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery[path]
}

// LastHeader returns the headers of the last request.
func (m *MockBackend) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (m *MockBackend) serveImages(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, `{"error":"invalid page"}`, http.StatusBadRequest)
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	total := m.imageCount
	m.mu.RUnlock()

	type image struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	images := []image{}
	for i := (page - 1) * limit; i < page*limit && i < total; i++ {
		images = append(images, image{
			ID:  strconv.Itoa(i + 1),
			URL: fmt.Sprintf("https://images.test/%d.jpg", i+1),
		})
	}
	writeJSON(w, images)
}

func (m *MockBackend) serveVehicles(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	vehicles := append([]MockVehicle{}, m.vehicles...)
	m.mu.RUnlock()

	writeJSON(w, map[string]any{"vehicles": vehicles})
}

func (m *MockBackend) serveRecommendation(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	rec := m.recommendation
	banner := m.bannerText
	m.mu.RUnlock()

	writeJSON(w, map[string]any{"bannerText": banner, "vehicle": rec})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// NewJSONResponse creates a 200 response with an ETag and a five minute max-age.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":  "application/json; charset=utf-8",
			"Cache-Control": "max-age=300",
			"ETag":          `"test-etag-123"`,
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 response asking to retry after retryAfter seconds.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json; charset=utf-8",
			"Retry-After":           strconv.Itoa(retryAfter),
			"X-RateLimit-Remaining": "0",
		},
	}
}

// NewConditionalHandler answers 304 when If-None-Match equals etag and the
// full body otherwise. Responses expire immediately so every request revalidates.
func NewConditionalHandler(etag, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
