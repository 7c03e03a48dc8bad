package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── API ─────────────────────────────────────────────────────────────────────

	APISessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rmftask",
		Subsystem: "api",
		Name:      "sessions_created_total",
		Help:      "Total feasibility sessions opened through the API.",
	}, []string{"automatic"})

	APIRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rmftask",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Total session requests rejected by the per-robot rate limiter.",
	})

	// ─── Estimator ───────────────────────────────────────────────────────────────

	EstimatorSessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rmftask",
		Subsystem: "estimator",
		Name:      "sessions_live",
		Help:      "Sessions currently awaiting confirmation.",
	})

	EstimatorEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rmftask",
		Subsystem: "estimator",
		Name:      "evaluations_total",
		Help:      "Total feasibility evaluations, labelled by outcome.",
	}, []string{"outcome"})

	EstimatorConfirmationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rmftask",
		Subsystem: "estimator",
		Name:      "confirmation_latency_seconds",
		Help:      "Time from session creation to confirmation, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	EstimatorSessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rmftask",
		Subsystem: "estimator",
		Name:      "sessions_reaped_total",
		Help:      "Total terminal sessions removed by the retention reaper.",
	})

	// ─── Confirmations ───────────────────────────────────────────────────────────

	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rmftask",
		Subsystem: "confirm",
		Name:      "responses_total",
		Help:      "Total confirmation responses processed, matched or not.",
	}, []string{"result"})
)
