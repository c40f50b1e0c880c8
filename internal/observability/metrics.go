package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// monitoring pipeline.
type Metrics struct {
	CycleRuns     prometheus.Counter
	CycleDuration prometheus.Histogram
	CycleRunning  prometheus.Gauge

	FetchRequests *prometheus.CounterVec // labels: source, outcome={fetched,unchanged,failed}

	IncidentsInserted prometheus.Counter
	IncidentsUpdated  prometheus.Counter
	IncidentsSwept    prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CycleRuns,
		m.CycleDuration,
		m.CycleRunning,
		m.FetchRequests,
		m.IncidentsInserted,
		m.IncidentsUpdated,
		m.IncidentsSwept,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.NotificationsSent,
		m.NotificationErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CycleRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "cycle_runs_total",
			Help:      "Total monitoring cycles started.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete monitoring cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_monitor",
			Name:      "cycle_running",
			Help:      "1 while a cycle is in flight, 0 otherwise.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "fetch_requests_total",
			Help:      "Source page fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		IncidentsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "incidents_inserted_total",
			Help:      "Total newly observed incidents inserted.",
		}),
		IncidentsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "incidents_updated_total",
			Help:      "Total re-observed incidents updated in place.",
		}),
		IncidentsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "incidents_swept_total",
			Help:      "Total incidents retired because they were not re-observed.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_monitor",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_monitor",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "notifications_sent_total",
			Help:      "Total per-user digest notifications dispatched.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_monitor",
			Name:      "notification_errors_total",
			Help:      "Total notification dispatch failures.",
		}),
	}
}
