package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villageroaster/bakeboard/internal/metrics"
	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/plan"
	"github.com/villageroaster/bakeboard/internal/resilience"
	"github.com/villageroaster/bakeboard/internal/state"
	"github.com/villageroaster/bakeboard/internal/store"
)

type harness struct {
	handler http.Handler
	board   *state.Store
	runs    *store.MemoryStore
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		board: state.New(state.Options{
			Location:  time.UTC,
			ResetHour: 0,
			Window:    plan.Window{StartHour: 7, EndHour: 15},
		}),
		runs:    store.NewMemory(10),
		metrics: metrics.New(),
	}
	opts := Options{
		Board:         h.board,
		Runs:          h.runs,
		Metrics:       h.metrics,
		Breakers:      resilience.NewBreakers(resilience.FromConfig(2, 60), "mailbox", "ocr"),
		StatePollSecs: 10,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.handler = NewRouter(opts)
	return h
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rr := h.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestState_Shape(t *testing.T) {
	h := newHarness(t, nil)
	h.board.ApplyBakePlan(context.Background(), []string{"Croissant", "Scone"})

	rr := h.do(http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	body := decode(t, rr)
	for _, key := range []string{
		"date", "roast_current", "roasts_today", "bake_items",
		"bake_current_index", "bake_mode", "roast_mode", "updated_at", "state_poll_seconds",
	} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, []any{"Croissant", "Scone"}, body["bake_items"])
	assert.Equal(t, []any{}, body["roasts_today"])
	assert.InDelta(t, 10.0, body["state_poll_seconds"], 0.001)
	assert.Equal(t, time.Now().UTC().Format(model.DateLayout), body["date"])
}

func TestState_DefaultPollSeconds(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.StatePollSecs = 0 })
	body := decode(t, h.do(http.MethodGet, "/api/state", ""))
	assert.InDelta(t, float64(defaultStatePollSecs), body["state_poll_seconds"], 0.001)
}

func TestRoast_GetSetsCurrent(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodGet, "/api/roast?item=%20Ethiopia%20Guji%20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"ok": true}, decode(t, rr))

	snap := h.board.Snapshot(context.Background())
	assert.Equal(t, "Ethiopia Guji", snap.CurrentRoast)
	assert.Equal(t, []string{"Ethiopia Guji"}, snap.RoastLog)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.RoastSetTotal), 0.001)
}

func TestRoast_PostJSON(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodPost, "/api/roast", `{"item":"Colombia Huila"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Colombia Huila", h.board.Snapshot(context.Background()).CurrentRoast)
}

func TestRoast_PostNonStringItem(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(http.MethodPost, "/api/roast", `{"item":42}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "42", h.board.Snapshot(context.Background()).CurrentRoast)
}

func TestRoast_MissingItem(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"get without item", http.MethodGet, "/api/roast", ""},
		{"get blank item", http.MethodGet, "/api/roast?item=%20%20", ""},
		{"post empty object", http.MethodPost, "/api/roast", `{}`},
		{"post null item", http.MethodPost, "/api/roast", `{"item":null}`},
		{"post malformed body", http.MethodPost, "/api/roast", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			rr := h.do(tt.method, tt.target, tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, map[string]any{"ok": false, "error": "missing item"}, decode(t, rr))
			assert.Empty(t, h.board.Snapshot(context.Background()).CurrentRoast)
			assert.InDelta(t, 0.0, testutil.ToFloat64(h.metrics.RoastSetTotal), 0.001)
		})
	}
}

func TestRoast_RateLimited(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.RoastRatePerSec = 0.001
		o.RoastBurst = 2
	})

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/roast?item=A", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/roast?item=B", "").Code)

	rr := h.do(http.MethodGet, "/api/roast?item=C", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, false, decode(t, rr)["ok"])
	assert.Equal(t, "B", h.board.Snapshot(context.Background()).CurrentRoast)
}

func TestRoast_UnlimitedByDefault(t *testing.T) {
	h := newHarness(t, nil)
	for range 20 {
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/roast?item=A", "").Code)
	}
}

type failingBoard struct{}

func (failingBoard) Snapshot(context.Context) model.Snapshot { return model.Snapshot{} }
func (failingBoard) SetCurrentRoast(context.Context, string) error {
	return eris.New("boom")
}

func TestRoast_InternalError(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Board = failingBoard{} })
	rr := h.do(http.MethodGet, "/api/roast?item=A", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRuns_List(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	base := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	for i, st := range []model.RunStatus{model.RunStatusIdle, model.RunStatusCommitted, model.RunStatusIdle} {
		require.NoError(t, h.runs.SaveRun(ctx, model.Run{
			ID:        string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    st,
		}))
	}

	rr := h.do(http.MethodGet, "/api/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	rr = h.do(http.MethodGet, "/api/runs?status=committed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestRuns_BadQuery(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/runs?limit=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/runs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/runs?status=bogus", "").Code)
}

func TestRuns_EmptyIsArray(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Runs = nil })
	rr := h.do(http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestDebug_IncludesBreakers(t *testing.T) {
	h := newHarness(t, nil)
	body := decode(t, h.do(http.MethodGet, "/api/debug", ""))

	assert.Contains(t, body, "raw_state")
	assert.Equal(t, map[string]any{"mailbox": "closed", "ocr": "closed"}, body["breakers"])
}

func TestMetrics_ExposedAndCounted(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/state", "")
	h.do(http.MethodGet, "/api/state", "")

	rr := h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bakeboard_http_requests_total")
	assert.InDelta(t, 2.0, testutil.ToFloat64(h.metrics.HTTPRequests.WithLabelValues("/api/state", "200")), 0.001)
}

func TestMetrics_AbsentWithoutRegistry(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Metrics = nil })
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/roast?item=A", "").Code)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.CORSOrigins = []string{"https://board.example"} })

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://board.example")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://board.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://other.example")
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
