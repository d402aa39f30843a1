package metrics

import "github.com/prometheus/client_golang/prometheus"

// Routing and centroid Prometheus metrics.
var (
	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by the stage that produced them",
		},
		[]string{"matched_via"}, // "vector" / "lexical" / "none"
	)

	RoutingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intentgate",
			Name:      "routing_duration_seconds",
			Help:      "Time to route one turn, excluding embedding",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	RegistryDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "routing_registry_degraded_total",
			Help:      "Turns routed vector-only because the term registry was unavailable",
		},
	)

	RecomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "centroid_recompute_total",
			Help:      "Centroid recomputes by outcome",
		},
		[]string{"status"},
	)

	RecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intentgate",
			Name:      "centroid_recompute_duration_seconds",
			Help:      "Centroid recompute duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	CentroidGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intentgate",
			Name:      "centroid_generation",
			Help:      "Currently served centroid generation number",
		},
	)

	CentroidExemplars = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intentgate",
			Name:      "centroid_exemplars",
			Help:      "Active exemplars behind each served centroid",
		},
		[]string{"domain"},
	)

	TermCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "term_cache_total",
			Help:      "Term registry lookup cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var routingMetricsRegistered bool

// RegisterRoutingMetrics registers routing, centroid and term cache metrics. Must be called once from main.
func RegisterRoutingMetrics() {
	if routingMetricsRegistered {
		return
	}
	prometheus.MustRegister(RoutingDecisionsTotal)
	prometheus.MustRegister(RoutingDuration)
	prometheus.MustRegister(RegistryDegradedTotal)
	prometheus.MustRegister(RecomputeTotal)
	prometheus.MustRegister(RecomputeDuration)
	prometheus.MustRegister(CentroidGeneration)
	prometheus.MustRegister(CentroidExemplars)
	prometheus.MustRegister(TermCacheTotal)
	routingMetricsRegistered = true
}
