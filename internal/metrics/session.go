package metrics

import "github.com/prometheus/client_golang/prometheus"

// Connection and delivery Prometheus metrics.
var (
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intentgate",
			Name:      "active_connections",
			Help:      "Connections currently in the Active state",
		},
	)

	SendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "send_failures_total",
			Help:      "Outbound frames that could not be delivered",
		},
		[]string{"reason"},
	)

	SessionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by close reason",
		},
		[]string{"reason"},
	)

	InboundFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentgate",
			Name:      "inbound_frames_total",
			Help:      "Inbound frames by processing outcome",
		},
		[]string{"outcome"},
	)

	HandlerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intentgate",
			Name:      "handler_request_duration_seconds",
			Help:      "Domain handler latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"domain", "status"},
	)
)

var sessionMetricsRegistered bool

// RegisterSessionMetrics registers connection and delivery metrics. Must be called once from main.
func RegisterSessionMetrics() {
	if sessionMetricsRegistered {
		return
	}
	prometheus.MustRegister(ActiveConnections)
	prometheus.MustRegister(SendFailuresTotal)
	prometheus.MustRegister(SessionsClosedTotal)
	prometheus.MustRegister(InboundFramesTotal)
	prometheus.MustRegister(HandlerRequestDuration)
	sessionMetricsRegistered = true
}

// SessionObserver feeds session lifecycle events into Prometheus.
type SessionObserver struct{}

// IncrementActiveConnections records a session entering Active.
func (SessionObserver) IncrementActiveConnections() { ActiveConnections.Inc() }

// DecrementActiveConnections records a session leaving Active.
func (SessionObserver) DecrementActiveConnections() { ActiveConnections.Dec() }

// RecordSendFailure counts an undeliverable outbound frame.
func (SessionObserver) RecordSendFailure(reason string) {
	SendFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordClose counts a closed session by reason.
func (SessionObserver) RecordClose(reason string) {
	SessionsClosedTotal.WithLabelValues(reason).Inc()
}
