// Package metrics exposes pipeline counters to Prometheus
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements core.Recorder on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	cacheLookups    *prometheus.CounterVec
	classifications *prometheus.CounterVec
	prefiltered     prometheus.Counter
	fetchFailures   prometheus.Counter
	ingestDuration  prometheus.Histogram
	ingestedEmails  prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_cache_lookups_total",
			Help: "Cache lookups by result (hit or miss).",
		}, []string{"result"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_classifications_total",
			Help: "Classifier calls by outcome.",
		}, []string{"outcome"}),
		prefiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_prefiltered_total",
			Help: "Emails dropped by the keyword prefilter.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_fetch_failures_total",
			Help: "Threads dropped after exhausting fetch retries.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_ingest_duration_seconds",
			Help:    "Duration of ingest requests.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ingestedEmails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_ingested_emails_total",
			Help: "Enriched emails returned to callers.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.classifications,
		m.prefiltered,
		m.fetchFailures,
		m.ingestDuration,
		m.ingestedEmails,
		m.httpRequests,
	)
	return m
}

// CacheLookup counts a cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Classification counts a classifier outcome
func (m *Metrics) Classification(outcome string) {
	m.classifications.WithLabelValues(outcome).Inc()
}

// Prefiltered counts an email dropped by the prefilter
func (m *Metrics) Prefiltered() {
	m.prefiltered.Inc()
}

// FetchFailed counts a dropped thread
func (m *Metrics) FetchFailed() {
	m.fetchFailures.Inc()
}

// Ingested observes a completed ingest request
func (m *Metrics) Ingested(d time.Duration, emails int) {
	m.ingestDuration.Observe(d.Seconds())
	m.ingestedEmails.Add(float64(emails))
}

// HTTPRequest counts a served request
func (m *Metrics) HTTPRequest(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
