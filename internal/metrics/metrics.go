// Package metrics exposes the monitor's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secmon",
		Name:      "events_total",
		Help:      "Security events processed, by kind and severity.",
	}, []string{"kind", "severity"})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secmon",
		Name:      "detections_total",
		Help:      "Secondary events emitted by detectors.",
	}, []string{"detector"})

	SinkFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secmon",
		Name:      "sink_failures_total",
		Help:      "Failed deliveries to external log sinks.",
	}, []string{"sink"})

	SinkDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secmon",
		Name:      "sink_deliveries_total",
		Help:      "Successful deliveries to external log sinks.",
	}, []string{"sink"})

	QueueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "secmon",
		Name:      "queue_dropped_total",
		Help:      "Secondary events dropped because the pipeline queue was full.",
	})
)
