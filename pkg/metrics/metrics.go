package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docrev", Name: "document_operations_total", Help: "Completed document operations by kind."},
		[]string{"op"},
	)
	RevisionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docrev", Name: "revision_conflicts_total", Help: "Updates rejected because the supplied revision was stale."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docrev", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docrev", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentOps)
	reg.MustRegister(RevisionConflicts)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
