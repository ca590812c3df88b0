// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

var (
	CatalogSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_catalog_searches_total",
			Help: "Catalog searches issued by the candidate aggregator, by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	CandidatePoolSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodmix_candidate_pool_size",
			Help:    "Deduplicated candidate pool size before sampling",
			Buckets: []float64{0, 5, 10, 20, 50, 100, 200},
		},
		[]string{"operation"},
	)

	FallbackSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodmix_fallback_searches_total",
			Help: "Broad fallback searches issued because the pool was empty",
		},
	)

	Flows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_flows_total",
			Help: "Recommendation flows by kind and result",
		},
		[]string{"kind", "result"}, // result: found, empty, error
	)

	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodmix_flow_duration_seconds",
			Help:    "End to end duration of recommendation flows",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_llm_fallbacks_total",
			Help: "Language model calls replaced by a local fallback",
		},
		[]string{"call"},
	)

	SpotifyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodmix_spotify_requests_total",
			Help: "HTTP requests to the Spotify Web API by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodmix_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordSearch counts one aggregator search.
func RecordSearch(tier, outcome string) {
	CatalogSearches.WithLabelValues(tier, outcome).Inc()
}

// RecordPool observes the pool size reached by an aggregation.
func RecordPool(operation string, size int) {
	CandidatePoolSize.WithLabelValues(operation).Observe(float64(size))
}

// RecordFlow records the result and duration of a recommendation flow.
func RecordFlow(kind, result string, duration time.Duration) {
	Flows.WithLabelValues(kind, result).Inc()
	FlowDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAPIRequest records a served HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
