package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"endpoint", "status"},
	)

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_rejections_total",
			Help: "Total number of rejected events by reason",
		},
		[]string{"reason"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_rate_limit_hits_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"tenant"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingress_queue_depth",
			Help: "Queue depth observed at the last enqueue",
		},
	)

	AdmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingress_admission_duration_seconds",
			Help:    "Duration of the full admission pipeline in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
