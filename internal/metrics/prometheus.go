// Package metrics exposes booster's Prometheus collectors: run counters and
// latency, pool concurrency/instantiation pressure, host-call volume, and
// reload outcomes. Registered against a private registry rather than the
// global default, so tests can spin up independent metric sets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps booster's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	PoolInFlight   prometheus.Gauge
	PoolRecycles   prometheus.Counter
	HostCallsTotal *prometheus.CounterVec
	ReloadsTotal   *prometheus.CounterVec
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var active *Metrics

// Init builds and registers booster's collectors under namespace, replacing
// any previously initialized set. Safe to call once at daemon startup.
func Init(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of guest module invocations, by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_milliseconds",
				Help:      "Duration of guest module invocations in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"status"},
		),
		PoolInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_in_flight",
				Help:      "Number of leases currently checked out of the execution pool",
			},
		),
		PoolRecycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_store_recycles_total",
				Help:      "Total number of Store instances force-recycled after hitting the instantiation cap",
			},
		),
		HostCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_calls_total",
				Help:      "Total host bridge calls, by function and result code",
			},
			[]string{"function", "code"},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total hot-reload attempts, by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PoolInFlight,
		m.PoolRecycles,
		m.HostCallsTotal,
		m.ReloadsTotal,
	)

	active = m
	return m
}

// Active returns the most recently initialized Metrics, or nil if Init has
// not been called yet.
func Active() *Metrics {
	return active
}

// Handler returns the /metrics HTTP handler for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
