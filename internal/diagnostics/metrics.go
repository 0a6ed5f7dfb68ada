// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "dcrm"

// Prediction paths used as metric labels.
const (
	PathFeatures = "features"
	PathRow      = "row"
	PathBatch    = "batch"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
	OutcomeDegraded    = "degraded"
)

var (
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "diagnostics",
			Name:      "predictions_total",
			Help:      "Rows diagnosed, by prediction path and outcome",
		},
		[]string{"path", "outcome"},
	)

	predictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "diagnostics",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent diagnosing one request",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"path"},
	)

	artifactLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "artifacts",
			Name:      "loads_total",
			Help:      "Artifact load attempts, by layout and outcome",
		},
		[]string{"layout", "outcome"},
	)

	attributionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "attribution",
			Name:      "runs_total",
			Help:      "Windowed attribution runs, by outcome",
		},
		[]string{"outcome"},
	)

	modelFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "attribution",
			Name:      "model_fallbacks_total",
			Help:      "Attribution models replaced by zeros",
		},
		[]string{"model"},
	)
)

func observeLoad(layout, outcome string) {
	artifactLoadsTotal.WithLabelValues(layout, outcome).Inc()
}

func observeFallback(model string) {
	modelFallbacksTotal.WithLabelValues(model).Inc()
}
