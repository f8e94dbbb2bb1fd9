package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/passivedns/internal/dispatch"
	"github.com/nao1215/passivedns/internal/model"
)

const namespace = "pdnstool"

// Metrics holds the Prometheus collectors for a crawl. It implements
// dispatch.Observer and crawl.Observer.
type Metrics struct {
	registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	lookupResults  *prometheus.CounterVec
	queries        *prometheus.CounterVec
	results        prometheus.Counter
	level          prometheus.Gauge
}

// New creates a Metrics with its own registry, including the process and
// Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_lookups_total",
			Help:      "Provider lookups by outcome.",
		}, []string{"provider", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_lookup_duration_seconds",
			Help:      "Wall time of provider lookups.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		}, []string{"provider"}),
		lookupResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_results_total",
			Help:      "Crawlable records returned by each provider.",
		}, []string{"provider"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_queries_total",
			Help:      "Claimed queries by final status.",
		}, []string{"status"}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_results_total",
			Help:      "Results recorded in the crawl state.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawl_level",
			Help:      "Shallowest depth that still has unresolved queries.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.lookups,
		m.lookupDuration,
		m.lookupResults,
		m.queries,
		m.results,
		m.level,
	)
	return m
}

// ObserveLookup implements dispatch.Observer.
func (m *Metrics) ObserveLookup(provider string, outcome dispatch.Outcome, elapsed time.Duration, results int) {
	m.lookups.WithLabelValues(provider, string(outcome)).Inc()
	m.lookupDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if results > 0 {
		m.lookupResults.WithLabelValues(provider).Add(float64(results))
	}
}

// ObserveQuery implements crawl.Observer.
func (m *Metrics) ObserveQuery(status model.Status, results int) {
	m.queries.WithLabelValues(string(status)).Inc()
	if results > 0 {
		m.results.Add(float64(results))
	}
}

// ObserveLevel implements crawl.Observer.
func (m *Metrics) ObserveLevel(level int) {
	m.level.Set(float64(level))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
