package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "jobs_processed_total",
			Help:      "Total number of successfully processed jobs",
		},
		[]string{"job"},
	)

	jobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "jobs_failed_total",
			Help:      "Total number of failed job processing attempts",
		},
		[]string{"job"},
	)

	jobsDLQ = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "jobs_dlq_total",
			Help:      "Total number of jobs written to DLQ",
		},
		[]string{"job"},
	)

	commitErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "commit_errors_total",
			Help:      "Total number of Kafka commit errors",
		},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "job_processing_duration_seconds",
			Help:      "Histogram of job processing durations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	jobsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "checkout_service",
			Subsystem: "kafka_consumer",
			Name:      "jobs_in_progress",
			Help:      "Number of jobs currently being processed",
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		jobsProcessed,
		jobsFailed,
		jobsDLQ,
		commitErrors,
		jobDuration,
		jobsInProgress,
	)
}
