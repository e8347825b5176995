// Package metrics holds the process-wide Prometheus collectors shared by
// every pipeline stage and the training pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WakeDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wake_detections_total",
		Help: "Wake phrase detections by keyphrase name",
	}, []string{"keyphrase"})

	CommandsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_captured_total",
		Help: "Voice commands captured by the command listener, by outcome",
	}, []string{"outcome"}) // "done" or "timeout"

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency across the audio pipeline",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by component and error kind",
	}, []string{"component", "kind"})

	IntentConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intent_confidence",
		Help:    "Confidence of recognized intents (0 for empty intent)",
		Buckets: []float64{0, 0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
	})

	DialogueState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dialogue_state",
		Help: "1 if the coordinator currently occupies this state, else 0",
	}, []string{"state"})

	TrainTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "train_task_duration_seconds",
		Help:    "Per-task latency in the training pipeline",
		Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
	}, []string{"task"})

	UnknownWords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "train_unknown_words",
		Help: "Count of unknown words left after G2P guessing in the last training run",
	})
)
