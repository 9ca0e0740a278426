package certinfo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// inspectionsTotal tracks certificate introspection calls by result
	// Labels: result (success, failure)
	inspectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercert_inspections_total",
			Help: "Total number of peer certificate introspections grouped by result",
		},
		[]string{"result"},
	)

	// rejectionsTotal tracks failed introspections and fingerprints by error kind
	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercert_rejections_total",
			Help: "Total number of rejected peer certificates grouped by error kind",
		},
		[]string{"kind"},
	)

	// fingerprintsTotal tracks computed fingerprints by algorithm
	fingerprintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercert_fingerprints_total",
			Help: "Total number of peer certificate fingerprints computed grouped by algorithm",
		},
		[]string{"algorithm"},
	)

	// altNamesCollected tracks the number of alternative names per certificate
	altNamesCollected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "peercert_alt_names",
			Help:    "Number of subject alternative names collected per peer certificate",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 100, 1024},
		},
	)
)

// recordInspection records the outcome of an introspection call
func recordInspection(info *CertificateInfo, err error) {
	if err != nil {
		inspectionsTotal.WithLabelValues("failure").Inc()
		recordRejection(err)
		return
	}
	inspectionsTotal.WithLabelValues("success").Inc()
	altNamesCollected.Observe(float64(len(info.AltNames)))
}

// recordRejection records a rejection with the error kind as reason
func recordRejection(err error) {
	kind := KindOf(err)
	if kind == "" {
		kind = "unknown"
	}
	rejectionsTotal.WithLabelValues(string(kind)).Inc()
}

// recordFingerprint records a computed fingerprint
func recordFingerprint(algorithm string) {
	fingerprintsTotal.WithLabelValues(algorithm).Inc()
}
