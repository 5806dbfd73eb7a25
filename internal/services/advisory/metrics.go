package advisory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agronity",
		Subsystem: "advisory",
		Name:      "request_duration_seconds",
		Help:      "Latency of advisory API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agronity",
		Subsystem: "advisory",
		Name:      "analyses_total",
		Help:      "Feasibility verdicts evaluated, by outcome.",
	}, []string{"feasible"})
)
