package linker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xplat_link_seconds",
		Help:    "Time spent on a full link pass.",
		Buckets: prometheus.DefBuckets,
	})

	linkConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplat_link_conflicts_total",
		Help: "Conflicts reported by link passes, by severity.",
	}, []string{"severity"})

	linkTypes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xplat_link_types_total",
		Help: "Native types seen by link passes, by platform and outcome.",
	}, []string{"platform", "outcome"})

	linkClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xplat_link_classes",
		Help: "Canonical classes in the most recent linked model.",
	})
)
