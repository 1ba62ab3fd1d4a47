// Package metrics exposes Prometheus instrumentation for the ledger engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsAccepted counts accepted mutations by operation name.
	OperationsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitwiser",
		Name:      "operations_accepted_total",
		Help:      "Accepted ledger mutations by operation.",
	}, []string{"op"})

	// OperationsRejected counts rejected mutations by operation and reason.
	OperationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitwiser",
		Name:      "operations_rejected_total",
		Help:      "Rejected ledger mutations by operation and rejection reason.",
	}, []string{"op", "reason"})

	// RecomputeDuration observes full balance recomputation latency.
	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "splitwiser",
		Name:      "recompute_duration_seconds",
		Help:      "Duration of full group balance recomputation.",
		Buckets:   prometheus.DefBuckets,
	})
)
