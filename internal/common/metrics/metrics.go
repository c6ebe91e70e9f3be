// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_jobs_completed_total",
			Help: "Total number of jobs whose frame sequence was fully delivered",
		},
		[]string{"source", "route"},
	)

	GatewayJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_jobs_failed_total",
			Help: "Total number of jobs that ended with an error frame or could not be delivered",
		},
		[]string{"source", "error_code"},
	)

	GatewayJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	GatewayJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_jobs_active",
			Help: "Number of jobs currently holding an admission slot",
		},
		[]string{"source"},
	)

	GatewayFramesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_frames_emitted_total",
			Help: "Frames emitted by kind (result, line, error)",
		},
		[]string{"kind"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_request_duration_seconds",
			Help:    "Time until upstream response headers arrive",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	ConcurrencyLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_concurrency_level",
			Help: "Current recommended concurrency level",
		},
	)

	ArrivalRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_arrival_rate",
			Help: "Job arrivals within the sliding window",
		},
	)
)
