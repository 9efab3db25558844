// README: Prometheus collectors for the matching engine and its API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	BucketsTotal      *prometheus.CounterVec
	MatchesProposed   prometheus.Counter
	MalformedSkipped  prometheus.Counter
	ProviderCalls     *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	GeocodeTotal      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New registers every collector on a fresh registry so tests can build as many
// instances as they need.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_matching_runs_total",
			Help: "Matching runs by outcome.",
		}, []string{"result"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coload_matching_run_duration_seconds",
			Help:    "Wall time of a full matching run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		BucketsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_matching_buckets_total",
			Help: "Buckets processed by outcome (solved, failed, skipped).",
		}, []string{"result"}),
		MatchesProposed: f.NewCounter(prometheus.CounterOpts{
			Name: "coload_matches_proposed_total",
			Help: "Pending matches persisted by the matching job.",
		}),
		MalformedSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "coload_shipments_malformed_total",
			Help: "Shipments excluded from a run because of malformed data.",
		}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_provider_calls_total",
			Help: "Calls to external map providers.",
		}, []string{"provider", "result"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_match_status_transitions_total",
			Help: "Match status updates applied.",
		}, []string{"to"}),
		GeocodeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_geocode_total",
			Help: "Geocoding attempts by outcome.",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coload_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
