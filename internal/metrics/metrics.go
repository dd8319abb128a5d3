package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Summary outcomes.
const (
	OutcomeStreamed = "streamed"
	OutcomeSaved    = "saved"
	OutcomeError    = "error"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	scrapeDuration prometheus.Histogram
	summaryTotal   *prometheus.CounterVec
}

// New creates a registry with the pipeline collectors plus Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readlater_ingest_total",
			Help: "Items that reached a terminal scrape status, by status.",
		}, []string{"status"}),
		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "readlater_scrape_duration_seconds",
			Help:    "Duration of scrape provider calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		summaryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readlater_summary_total",
			Help: "Summary generation and persistence attempts, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.ingestTotal,
		m.scrapeDuration,
		m.summaryTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest counts an item reaching status. Nil-safe.
func (m *Metrics) ObserveIngest(status string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(status).Inc()
}

// ObserveScrape records the duration of one scrape call. Nil-safe.
func (m *Metrics) ObserveScrape(d time.Duration) {
	if m == nil {
		return
	}
	m.scrapeDuration.Observe(d.Seconds())
}

// ObserveSummary counts a summary outcome. Nil-safe.
func (m *Metrics) ObserveSummary(outcome string) {
	if m == nil {
		return
	}
	m.summaryTotal.WithLabelValues(outcome).Inc()
}
