// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vigil_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ScansAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_scans_admitted_total",
		Help: "Scans accepted by the admission gate.",
	})

	ScansRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_scans_rejected_total",
		Help: "Admission rejections by error code.",
	}, []string{"code"})

	ScansCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_scans_completed_total",
		Help: "Scans that reached the completed state.",
	})

	ScansFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_scans_failed_total",
		Help: "Scans that reached the failed state.",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigil_scan_duration_seconds",
		Help:    "Wall-clock duration of scan execution.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_queue_job_retries_total",
		Help: "Job deliveries resolved as retry.",
	})

	JobsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_queue_jobs_dead_total",
		Help: "Jobs moved to the dead set.",
	})
)
