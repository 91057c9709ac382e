package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pagekit/pkg/client"
	"github.com/Sternrassler/pagekit/pkg/config"
	"github.com/Sternrassler/pagekit/pkg/images"
	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/Sternrassler/pagekit/pkg/metrics"
	"github.com/Sternrassler/pagekit/pkg/optional"
	"github.com/Sternrassler/pagekit/pkg/pagination"
	"github.com/Sternrassler/pagekit/pkg/ratelimit"
	"github.com/Sternrassler/pagekit/pkg/vehicles"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// server owns one image loader shared by all requests, like a single screen.
type server struct {
	api      *client.Client
	loader   *pagination.Loader[images.Image]
	vehicles *vehicles.Repository
	limiter  *ratelimit.KeyedLimiter
	logger   zerolog.Logger
}

func newServer(api *client.Client, cfg config.Config) *server {
	s := &server{
		api:      api,
		loader:   images.NewRepository(api, cfg.Pager.PageSize).NewLoader(),
		vehicles: vehicles.NewRepository(api, cfg.VehiclesConfig()),
		limiter:  ratelimit.NewKeyed(cfg.HTTP.ClientRPS, cfg.HTTP.ClientBurst, 10*time.Minute),
		logger:   logging.NewLogger("server"),
	}
	s.loader.Observe(func(snap pagination.Snapshot[images.Image]) {
		s.logger.Debug().
			Int("pages", len(snap.Pages)).
			Str("refresh", snap.States.Refresh.Status.String()).
			Str("prepend", snap.States.Prepend.Status.String()).
			Str("append", snap.States.Append.Status.String()).
			Msg("Image list changed")
	})
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(method, path string, h http.HandlerFunc) {
		mux.Handle(method+" "+path, metrics.Instrument(path, h))
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	handle(http.MethodGet, "/vehicles", s.handleVehicles)
	handle(http.MethodGet, "/images", s.handleImages)
	handle(http.MethodPost, "/images/append", s.handleAppend)
	handle(http.MethodPost, "/images/prepend", s.handlePrepend)
	handle(http.MethodPost, "/images/refresh", s.handleRefresh)
	handle(http.MethodPost, "/images/retry", s.handleRetry)

	return s.rateLimit(mux)
}

func (s *server) Close() error {
	return multierr.Combine(s.loader.Close(), s.api.Close())
}

// rateLimit rejects clients exceeding their per-IP budget. Health and
// metrics are exempt.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host, time.Now()) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := vehicles.Search{
		PickupDate:     q.Get("pickupDate"),
		PickupLocation: q.Get("pickupLocation"),
		ReturnDate:     q.Get("returnDate"),
		ReturnLocation: q.Get("returnLocation"),
	}

	listing, err := s.vehicles.VehiclesWithRecommendation(r.Context(), search)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
		s.logger.Error().Err(err).Str("search", search.Key()).Msg("Vehicle listing failed")
	}
	writeJSON(w, status, vehicles.NewViewState(listing, err))
}

// imagesView is the JSON form of the image list.
type imagesView struct {
	Items    []images.Image        `json:"items"`
	PageKeys []int                 `json:"pageKeys"`
	States   pagination.LoadStates `json:"states"`
	Error    string                `json:"error,omitempty"`
}

func (s *server) handleImages(w http.ResponseWriter, r *http.Request) {
	s.writeImages(w, nil)
}

func (s *server) handleAppend(w http.ResponseWriter, r *http.Request) {
	s.writeImages(w, s.loader.Append(r.Context()))
}

func (s *server) handlePrepend(w http.ResponseWriter, r *http.Request) {
	s.writeImages(w, s.loader.Prepend(r.Context()))
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	anchor := optional.None[int]()
	if raw := r.URL.Query().Get("anchor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "anchor must be a non-negative integer"})
			return
		}
		anchor = optional.Some(n)
	}
	s.writeImages(w, s.loader.Refresh(r.Context(), anchor))
}

func (s *server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.writeImages(w, s.loader.Retry(r.Context()))
}

func (s *server) writeImages(w http.ResponseWriter, loadErr error) {
	snap := s.loader.Snapshot()
	view := imagesView{
		Items:    []images.Image{},
		PageKeys: make([]int, 0, len(snap.Pages)),
		States:   snap.States,
	}
	for _, p := range snap.Pages {
		view.Items = append(view.Items, p.Items...)
		view.PageKeys = append(view.PageKeys, p.Key)
	}

	status := http.StatusOK
	if loadErr != nil {
		view.Error = loadErr.Error()
		status = http.StatusBadGateway
		if errors.Is(loadErr, pagination.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
