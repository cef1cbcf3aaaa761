// Package api serves the board's JSON read surface and the current-roast
// write endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/villageroaster/bakeboard/internal/metrics"
	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/resilience"
	"github.com/villageroaster/bakeboard/internal/state"
)

const (
	defaultStatePollSecs = 10
	defaultRunsLimit     = 20
	maxRunsLimit         = 200
	maxBodyBytes         = 1 << 16
)

// Board is the state the API reads and writes.
type Board interface {
	Snapshot(ctx context.Context) model.Snapshot
	SetCurrentRoast(ctx context.Context, item string) error
}

// RunLister lists recorded ingestion runs.
type RunLister interface {
	ListRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error)
}

// Options configures the router. Runs, Metrics and Breakers are optional.
type Options struct {
	Board    Board
	Runs     RunLister
	Metrics  *metrics.Metrics
	Breakers *resilience.Breakers

	StatePollSecs   int
	CORSOrigins     []string
	RoastRatePerSec float64
	RoastBurst      int
}

type server struct {
	opts    Options
	limiter *rate.Limiter
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.StatePollSecs <= 0 {
		opts.StatePollSecs = defaultStatePollSecs
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	limit := rate.Inf
	if opts.RoastRatePerSec > 0 {
		limit = rate.Limit(opts.RoastRatePerSec)
	}
	s := &server{
		opts:    opts,
		limiter: rate.NewLimiter(limit, max(opts.RoastBurst, 1)),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Get("/roast", s.setRoast)
		r.Post("/roast", s.setRoast)
		r.Get("/runs", s.listRuns)
		r.Get("/debug", s.debug)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok")) //nolint:errcheck
}

type stateResponse struct {
	model.Snapshot
	StatePollSeconds int `json:"state_poll_seconds"`
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Snapshot:         s.opts.Board.Snapshot(r.Context()),
		StatePollSeconds: s.opts.StatePollSecs,
	})
}

type roastResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *server) setRoast(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, roastResponse{Error: "rate limited"})
		return
	}

	item := roastItem(w, r)
	err := s.opts.Board.SetCurrentRoast(r.Context(), item)
	switch {
	case errors.Is(err, state.ErrEmptyRoast):
		writeJSON(w, http.StatusBadRequest, roastResponse{Error: "missing item"})
		return
	case err != nil:
		zap.L().Error("api: set roast", zap.String("component", "api"), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, roastResponse{Error: "internal error"})
		return
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.IncRoastSet()
	}
	writeJSON(w, http.StatusOK, roastResponse{OK: true})
}

// roastItem reads the item from the query string on GET and from a JSON
// body on POST. A malformed body yields an empty item.
func roastItem(w http.ResponseWriter, r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("item")
	}

	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return ""
	}
	switch v := body["item"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeJSON(w, http.StatusOK, []model.Run{})
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxRunsLimit)
	}
	status := model.RunStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	runs, err := s.opts.Runs.ListRuns(r.Context(), model.RunFilter{Status: status, Limit: limit})
	if err != nil {
		zap.L().Error("api: list runs", zap.String("component", "api"), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type debugResponse struct {
	RawState model.DailyState  `json:"raw_state"`
	Breakers map[string]string `json:"breakers"`
}

func (s *server) debug(w http.ResponseWriter, r *http.Request) {
	resp := debugResponse{
		RawState: s.opts.Board.Snapshot(r.Context()).DailyState,
		Breakers: map[string]string{},
	}
	if s.opts.Breakers != nil {
		for name, st := range s.opts.Breakers.States() {
			resp.Breakers[name] = st.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// observe counts requests by route pattern and logs them at debug level.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		}
		zap.L().Debug("api: request",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", code),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.String("component", "api"), zap.Error(err))
	}
}
