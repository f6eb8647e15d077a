package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type upstreamMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type syncMetrics struct {
	runs     *prometheus.CounterVec
	vaults   *prometheus.GaugeVec
	duration prometheus.Histogram
}

type apiMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type solverMetrics struct {
	selections *prometheus.CounterVec
	quotes     *prometheus.CounterVec
}

var (
	upstreamOnce     sync.Once
	upstreamRegistry *upstreamMetrics

	syncOnce     sync.Once
	syncRegistry *syncMetrics

	apiOnce     sync.Once
	apiRegistry *apiMetrics

	solverOnce     sync.Once
	solverRegistry *solverMetrics
)

// Upstream returns the lazily-initialised registry for upstream HTTP calls
// (kong, enso, cow).
func Upstream() *upstreamMetrics {
	upstreamOnce.Do(func() {
		upstreamRegistry = &upstreamMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaults",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream requests segmented by source, endpoint and outcome.",
			}, []string{"source", "endpoint", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vaults",
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for upstream requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"source", "endpoint"}),
		}
		prometheus.MustRegister(upstreamRegistry.requests, upstreamRegistry.latency)
	})
	return upstreamRegistry
}

func (m *upstreamMetrics) Observe(source, endpoint string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(source, endpoint, outcome).Inc()
	m.latency.WithLabelValues(source, endpoint).Observe(duration.Seconds())
}

// Sync returns the registry describing upstream sync passes.
func Sync() *syncMetrics {
	syncOnce.Do(func() {
		syncRegistry = &syncMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaults",
				Subsystem: "sync",
				Name:      "runs_total",
				Help:      "Sync passes segmented by outcome.",
			}, []string{"outcome"}),
			vaults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaults",
				Subsystem: "sync",
				Name:      "vaults",
				Help:      "Vaults processed by the last sync pass.",
			}, []string{"state"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "vaults",
				Subsystem: "sync",
				Name:      "duration_seconds",
				Help:      "Duration of full sync passes.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			}),
		}
		prometheus.MustRegister(syncRegistry.runs, syncRegistry.vaults, syncRegistry.duration)
	})
	return syncRegistry
}

func (m *syncMetrics) Observe(total, updated, failed int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.vaults.WithLabelValues("total").Set(float64(total))
	m.vaults.WithLabelValues("updated").Set(float64(updated))
	m.vaults.WithLabelValues("failed").Set(float64(failed))
	m.duration.Observe(duration.Seconds())
}

// API returns the registry for inbound HTTP requests.
func API() *apiMetrics {
	apiOnce.Do(func() {
		apiRegistry = &apiMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaults",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests segmented by route, method and status.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vaults",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
		}
		prometheus.MustRegister(apiRegistry.requests, apiRegistry.latency)
	})
	return apiRegistry
}

func (m *apiMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Solver returns the registry counting solver decisions and quote outcomes.
func Solver() *solverMetrics {
	solverOnce.Do(func() {
		solverRegistry = &solverMetrics{
			selections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaults",
				Subsystem: "solver",
				Name:      "selections_total",
				Help:      "Solver decisions segmented by solver kind and action.",
			}, []string{"solver", "action"}),
			quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaults",
				Subsystem: "solver",
				Name:      "quotes_total",
				Help:      "Quotes built segmented by solver kind and outcome.",
			}, []string{"solver", "outcome"}),
		}
		prometheus.MustRegister(solverRegistry.selections, solverRegistry.quotes)
	})
	return solverRegistry
}

func (m *solverMetrics) ObserveSelection(solver, action string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(solver, action).Inc()
}

func (m *solverMetrics) ObserveQuote(solver string, failed bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.quotes.WithLabelValues(solver, outcome).Inc()
}
