package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplat_bridge_calls_total",
		Help: "Bridge calls completed, by message type and outcome.",
	}, []string{"type", "outcome"})

	queuedCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xplat_bridge_queued_calls",
		Help: "Calls waiting behind a pending construction.",
	})

	liveHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xplat_bridge_live_handles",
		Help: "Script-side handles that have not been released.",
	})

	protocolViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xplat_bridge_protocol_violations_total",
		Help: "Calls rejected for lifetime errors such as release below zero.",
	})

	eventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xplat_bridge_events_total",
		Help: "Events delivered from native code to script handlers.",
	})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xplat_bridge_call_seconds",
		Help:    "Round-trip time of bridge calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)
