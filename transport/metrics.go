package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// identityChecksTotal tracks peer identity checks per transport
	// Labels: transport (http, grpc), result (accepted, rejected)
	identityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercert_identity_checks_total",
			Help: "Total number of peer identity checks grouped by transport and result",
		},
		[]string{"transport", "result"},
	)

	// identityCheckDuration tracks the latency of a full identity check
	identityCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peercert_identity_check_duration_seconds",
			Help:    "Duration of peer identity checks in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"transport"},
	)
)

// recordIdentityCheck records the outcome of an identity check
func recordIdentityCheck(transport string, accepted bool, seconds float64) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	identityChecksTotal.WithLabelValues(transport, result).Inc()
	identityCheckDuration.WithLabelValues(transport).Observe(seconds)
}
