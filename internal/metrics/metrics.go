// Package metrics exposes Prometheus instrumentation for the analysis
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "analysis_duration_seconds",
			Subsystem: "harmonic",
			Help:      "Harmonic analysis latencies in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"status", "error_method"},
	)
	predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "prediction_duration_seconds",
			Subsystem: "harmonic",
			Help:      "Tide prediction latencies in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		analysisDuration,
		predictionDuration,
	)
}

// ObserveAnalysis records one analysis call.
func ObserveAnalysis(status, errorMethod string, start time.Time) {
	analysisDuration.With(prometheus.Labels{
		"status":       status,
		"error_method": errorMethod,
	}).Observe(time.Since(start).Seconds())
}

// ObservePrediction records one prediction call.
func ObservePrediction(status string, start time.Time) {
	predictionDuration.With(prometheus.Labels{
		"status": status,
	}).Observe(time.Since(start).Seconds())
}
