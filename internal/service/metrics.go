package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	versionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyflow_versions_created_total",
			Help: "Content versions written, by generator",
		},
		[]string{"generated_by"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complyflow_transitions_total",
			Help: "Workflow actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "complyflow_generation_duration_seconds",
			Help:    "Time spent waiting on the generators",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90},
		},
		[]string{"action", "outcome"},
	)

	versionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "complyflow_version_conflicts_total",
			Help: "Read-modify-write cycles retried after a version conflict",
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
