package interfaces

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_admissions_total",
		Help: "Order admission attempts partitioned by result.",
	}, []string{"result"})

	admissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_admission_duration_seconds",
		Help:    "Wall time of the full admission procedure.",
		Buckets: prometheus.DefBuckets,
	})
)
