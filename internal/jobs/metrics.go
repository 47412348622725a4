package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobDuration tracks how long a handler takes to run, labeled by kind
	// and outcome (completed, failed, rescheduled, cancelled).
	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matric",
			Subsystem: "jobs",
			Name:      "handler_duration_seconds",
			Help:      "Duration of job handler execution in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "outcome"},
	)

	// jobsClaimed counts successful queue claims.
	jobsClaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matric",
			Subsystem: "jobs",
			Name:      "claimed_total",
			Help:      "Total number of jobs claimed from the queue, labeled by kind",
		},
		[]string{"kind"},
	)

	// jobsOutcome counts terminal/retry transitions, labeled by kind and
	// outcome.
	jobsOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matric",
			Subsystem: "jobs",
			Name:      "outcomes_total",
			Help:      "Total number of job handler outcomes, labeled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// claimErrors counts failed SELECT ... FOR UPDATE SKIP LOCKED polls.
	claimErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matric",
			Subsystem: "jobs",
			Name:      "claim_errors_total",
			Help:      "Total number of errors encountered while claiming a job",
		},
	)
)

// recordOutcome records a handler's duration and terminal outcome for
// Prometheus scraping; outcome is one of completed, failed, rescheduled,
// cancelled, no_handler.
func recordOutcome(kind, outcome string, seconds float64) {
	jobDuration.WithLabelValues(kind, outcome).Observe(seconds)
	jobsOutcome.WithLabelValues(kind, outcome).Inc()
}
