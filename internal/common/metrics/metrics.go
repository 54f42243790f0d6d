// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FunnelTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_transitions_total",
			Help: "Total number of accepted step transitions",
		},
		[]string{"flow", "event"},
	)

	FunnelGuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_guard_rejections_total",
			Help: "Total number of transitions refused by a guard",
		},
		[]string{"flow", "event"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Lead and booking submissions by outcome",
		},
		[]string{"kind", "outcome"},
	)

	AvailabilityFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "availability_fetch_failures_total",
			Help: "Booked-slot fetches that failed open",
		},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "external_call_duration_seconds",
			Help: "Duration of calls to external services in seconds",
		},
		[]string{"service"},
	)
)
