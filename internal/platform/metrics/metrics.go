// Package metrics exposes Prometheus instruments for the retrieval and
// import paths. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bibliobridge"

// Server outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	Registry *prometheus.Registry

	serverSearches *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram
	importActions  *prometheus.CounterVec
	importFailures *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		serverSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "z3950_server_searches_total",
			Help:      "Searches issued to each remote server, by outcome.",
		}, []string{"server", "outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "z3950_search_duration_seconds",
			Help:      "Wall time of a fan-out search across all servers.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "z3950_search_results",
			Help:      "Entries returned by a fan-out search.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		importActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_actions_total",
			Help:      "Successful imports, by resolved action.",
		}, []string{"action"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_failures_total",
			Help:      "Rejected imports, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.serverSearches,
		m.searchDuration,
		m.searchResults,
		m.importActions,
		m.importFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveServer(server, outcome string) {
	if m == nil {
		return
	}
	m.serverSearches.WithLabelValues(server, outcome).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

func (m *Metrics) ObserveImport(action string) {
	if m == nil {
		return
	}
	m.importActions.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveImportFailure(reason string) {
	if m == nil {
		return
	}
	m.importFailures.WithLabelValues(reason).Inc()
}
