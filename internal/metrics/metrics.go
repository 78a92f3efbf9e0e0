// Package metrics declares the Prometheus collectors of the scoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScenesProcessed counts per-date cloud scenes by outcome (kept, skipped).
	ScenesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_cloud_scenes_total",
			Help: "Cloud-mask scenes processed, by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderRequests counts raster provider HTTP calls by operation and result.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_provider_requests_total",
			Help: "Raster provider requests, by operation and result",
		},
		[]string{"op", "result"},
	)

	// AuthRefreshes counts provider session refreshes by grant used.
	AuthRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_provider_auth_total",
			Help: "Provider token acquisitions, by grant",
		},
		[]string{"grant"},
	)

	// ProximityQueries counts proximity lookups by class and result.
	ProximityQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_proximity_queries_total",
			Help: "Infrastructure proximity queries, by class and result",
		},
		[]string{"class", "result"},
	)

	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_site_scores_total",
			Help: "Site score computations, by result",
		},
		[]string{"result"},
	)

	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solar_site_score_duration_seconds",
			Help:    "Time to compute a site score",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solar_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)
