package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation and scorer collectors.
var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendation pages served, by provenance label",
		},
		[]string{"provenance"},
	)

	TierBooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_tier_books_total",
			Help:      "Books contributed to recommendation pages, by tier",
		},
		[]string{"tier"},
	)

	ScorerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scorer_duration_seconds",
			Help:      "Scorer invocation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"scorer"},
	)

	ScorerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_errors_total",
			Help:      "Scorer failures, by reason",
		},
		[]string{"scorer", "reason"},
	)

	DenseIndexAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dense_index_assigned_total",
			Help:      "Dense indices assigned by maintenance runs",
		},
	)
)

func init() {
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(TierBooksTotal)
	prometheus.MustRegister(ScorerDuration)
	prometheus.MustRegister(ScorerErrorsTotal)
	prometheus.MustRegister(DenseIndexAssignedTotal)
}
