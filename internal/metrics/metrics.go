package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики - pull-модель: коллаборатор скрейпит Handler()

type Metrics struct {
	RoutedTotal      *prometheus.CounterVec
	RoutingDuration  *prometheus.HistogramVec
	RoutingInFlight  prometheus.Gauge
	FallbacksTotal   prometheus.Counter
	ComplexityScore  prometheus.Histogram
	RetriesTotal     *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	RejectionsTotal  *prometheus.CounterVec
	RateLimitTimeout *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RoutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrouter_documents_routed_total",
				Help: "Terminal routing outcomes by mode and status",
			},
			[]string{"mode", "status"},
		),
		RoutingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docrouter_routing_duration_seconds",
				Help:    "End-to-end routing duration including retries and fallback",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		RoutingInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docrouter_routing_in_flight",
				Help: "Documents currently being routed",
			},
		),
		FallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docrouter_fallbacks_total",
				Help: "Documents rerouted to the fallback mode",
			},
		),
		ComplexityScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docrouter_complexity_score",
				Help:    "Distribution of complexity totals",
				Buckets: []float64{10, 20, 30, 40, 50, 61, 75, 90, 100},
			},
		),
		RetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrouter_retries_total",
				Help: "Retry attempts by backend",
			},
			[]string{"backend"},
		),
		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docrouter_breaker_state",
				Help: "Circuit breaker state per backend (0=closed, 1=half_open, 2=open)",
			},
			[]string{"backend"},
		),
		RejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrouter_breaker_rejections_total",
				Help: "Calls rejected by an open circuit",
			},
			[]string{"backend"},
		),
		RateLimitTimeout: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrouter_rate_limit_timeouts_total",
				Help: "Acquisitions that timed out waiting for tokens",
			},
			[]string{"backend"},
		),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordRouted(mode, status string, duration time.Duration) {
	m.RoutedTotal.WithLabelValues(mode, status).Inc()
	m.RoutingDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *Metrics) RecordFallback() {
	m.FallbacksTotal.Inc()
}

func (m *Metrics) RecordComplexity(total int) {
	m.ComplexityScore.Observe(float64(total))
}

func (m *Metrics) RecordRetry(backend string) {
	m.RetriesTotal.WithLabelValues(backend).Inc()
}

func (m *Metrics) SetBreakerState(backend, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.BreakerState.WithLabelValues(backend).Set(v)
}

func (m *Metrics) RecordRejection(backend string) {
	m.RejectionsTotal.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordRateLimitTimeout(backend string) {
	m.RateLimitTimeout.WithLabelValues(backend).Inc()
}

func (m *Metrics) IncInFlight() {
	m.RoutingInFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	m.RoutingInFlight.Dec()
}
