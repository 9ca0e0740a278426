package pinning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pinChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peercert_pin_checks_total",
		Help: "Total number of peer fingerprint pin checks",
	},
	[]string{"result"}, // pinned, not_pinned, revoked, expired, error
)
