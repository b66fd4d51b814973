// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the prometheus collectors exported by vidlens.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_runs_total",
		Help: "Analysis runs by terminal outcome",
	}, []string{"outcome"}) // outcome=succeeded|failed|panicked

	runsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidlens_runs_in_flight",
		Help: "Analysis runs currently executing",
	})

	runsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_runs_rejected_total",
		Help: "Analysis requests rejected at admission",
	}, []string{"reason"}) // reason=closed|queue_full|invalid

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidlens_run_duration_seconds",
		Help:    "End-to-end duration of analysis runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600, 7200},
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidlens_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.5, 14), // 50ms to ~3h
	}, []string{"stage"})
)

// IncRun records the terminal outcome of a run.
func IncRun(outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RunStarted marks a run as in flight and returns the function that clears it.
func RunStarted() func() {
	runsInFlight.Inc()
	return runsInFlight.Dec
}

// IncRunRejected records an admission rejection.
func IncRunRejected(reason string) {
	runsRejected.WithLabelValues(reason).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
