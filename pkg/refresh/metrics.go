package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_refresh_jobs_total",
			Help: "Background refresh jobs by result",
		},
		[]string{"result"}, // success, failed, rejected, dropped
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plantcare_refresh_job_duration_seconds",
			Help:    "Duration of background refresh jobs",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plantcare_refresh_queue_depth",
			Help: "Jobs waiting in the refresh queue",
		},
	)

	sweepEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantcare_refresh_sweep_enqueued_total",
			Help: "Records enqueued by the stale sweeper",
		},
	)
)
