package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageTotal counts per-node stage invocations by phase and outcome.
	StageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vquery_stage_total",
			Help: "Total number of node stage invocations",
		},
		[]string{"phase", "status"},
	)
	// PhaseDuration is the wall time of a whole phase across all nodes.
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vquery_phase_duration_seconds",
			Help:    "Pipeline phase latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	// VerifyTotal counts verification outcomes.
	VerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vquery_verify_total",
			Help: "Total number of proof verifications",
		},
		[]string{"result"},
	)
	// KeyCacheHits counts KeyGen calls served without generating keys.
	KeyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vquery_key_cache_hits_total",
			Help: "Total number of key generations served from the shape cache",
		},
	)
)

func observeStage(phase Phase, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StageTotal.WithLabelValues(string(phase), status).Inc()
}
