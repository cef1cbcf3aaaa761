// Package metrics defines the board's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/resilience"
)

type Metrics struct {
	TicksTotal    *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	OCRDuration   prometheus.Histogram
	PlanItems     prometheus.Gauge
	RoastSetTotal prometheus.Counter
	BreakerState  *prometheus.GaugeVec
	HTTPRequests  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the instruments with a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the instruments with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TicksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bakeboard_ingest_ticks_total",
			Help: "Ingestion ticks by outcome",
		}, []string{"status"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bakeboard_ingest_tick_duration_seconds",
			Help:    "Wall time of one ingestion tick",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		OCRDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bakeboard_ocr_duration_seconds",
			Help:    "Latency of OCR provider calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}),
		PlanItems: f.NewGauge(prometheus.GaugeOpts{
			Name: "bakeboard_bake_plan_items",
			Help: "Items in the most recently committed bake plan",
		}),
		RoastSetTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bakeboard_roast_set_total",
			Help: "Accepted current-roast updates",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bakeboard_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bakeboard_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		gatherer: reg,
	}
}

// ObserveTick records one finished tick.
func (m *Metrics) ObserveTick(status model.RunStatus, d time.Duration) {
	m.TicksTotal.WithLabelValues(string(status)).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObserveOCR records one provider call.
func (m *Metrics) ObserveOCR(d time.Duration) {
	m.OCRDuration.Observe(d.Seconds())
}

// SetPlanItems records the size of the committed plan.
func (m *Metrics) SetPlanItems(n int) {
	m.PlanItems.Set(float64(n))
}

// IncRoastSet counts an accepted roast update.
func (m *Metrics) IncRoastSet() {
	m.RoastSetTotal.Inc()
}

// BreakerChanged matches resilience.BreakerConfig.OnStateChange.
func (m *Metrics) BreakerChanged(name string, _, to resilience.CircuitState) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
