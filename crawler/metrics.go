package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry              *prometheus.Registry
	PagesTotal            prometheus.Counter
	FetchDuration         prometheus.Histogram
	FetchErrorsTotal      *prometheus.CounterVec
	RecordsExtractedTotal prometheus.Counter
	RecordsAcceptedTotal  prometheus.Counter
	RecordsRejectedTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Total catalog pages fetched successfully.",
		},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Page fetch latency, including browser rendering.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_errors_total",
			Help: "Total fetch failures by type.",
		},
		[]string{"error_type"},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_extracted_total",
			Help: "Total candidate records extracted from pages.",
		},
	)
	accepted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_accepted_total",
			Help: "Total records accepted by schema validation.",
		},
	)
	rejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_rejected_total",
			Help: "Total records rejected by schema validation.",
		},
	)

	registry.MustRegister(pages, fetchDuration, fetchErrors, extracted, accepted, rejected)

	return &Metrics{
		Registry:              registry,
		PagesTotal:            pages,
		FetchDuration:         fetchDuration,
		FetchErrorsTotal:      fetchErrors,
		RecordsExtractedTotal: extracted,
		RecordsAcceptedTotal:  accepted,
		RecordsRejectedTotal:  rejected,
	}
}

// IncPage increments the fetched pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// ObserveFetchDuration records one page fetch duration.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFetchError increments the fetch errors counter for a type label.
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddExtracted adds to the extracted records counter.
func (m *Metrics) AddExtracted(n int) {
	if m == nil {
		return
	}
	m.RecordsExtractedTotal.Add(float64(n))
}

// IncAccepted increments the accepted records counter.
func (m *Metrics) IncAccepted() {
	if m == nil {
		return
	}
	m.RecordsAcceptedTotal.Inc()
}

// IncRejected increments the rejected records counter.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.RecordsRejectedTotal.Inc()
}
