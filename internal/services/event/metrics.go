package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agronity",
		Subsystem: "events",
		Name:      "ingested_total",
		Help:      "Events written to storage, by type and severity.",
	}, []string{"event_type", "severity"})

	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agronity",
		Subsystem: "events",
		Name:      "decode_failures_total",
		Help:      "Bus payloads that could not be decoded.",
	})
)
