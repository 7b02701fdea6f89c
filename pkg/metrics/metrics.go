package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts scheduler invocations.
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fogcast_scheduler_ticks_total",
			Help: "The total number of scheduler ticks.",
		},
	)

	// TickFailures counts ticks aborted while selecting jobs.
	TickFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fogcast_scheduler_tick_failures_total",
			Help: "The total number of ticks that failed before any job ran.",
		},
	)

	// JobOutcomes counts terminal job states per tick.
	JobOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fogcast_job_outcomes_total",
			Help: "The total number of job executions by outcome.",
		},
		[]string{"job", "outcome"},
	)

	// JobDuration is a histogram of job execution time, skipped jobs excluded.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fogcast_job_duration_seconds",
			Help:    "A histogram of the job execution duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s .. ~17min
		},
		[]string{"job"},
	)

	// Notifications counts alert deliveries per channel and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fogcast_notifications_total",
			Help: "The total number of notifications by channel and result.",
		},
		[]string{"channel", "result"},
	)

	// ModelFetchFailures counts forecast models that could not be retrieved.
	ModelFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fogcast_model_fetch_failures_total",
			Help: "The total number of failed forecast requests per model.",
		},
		[]string{"model"},
	)
)
