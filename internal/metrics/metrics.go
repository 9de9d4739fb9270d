// Package metrics provides Prometheus metrics for the occupancy classifier.
// It tracks pipeline runs, per-stage durations, dataset sizes, the model
// search and the held-out scores, exposed via the Prometheus endpoint of
// the occupancy command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "occupancy"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Run metrics
	PipelineRuns     prometheus.Counter       // Total number of pipeline runs started
	PipelineFailures prometheus.Counter       // Total number of runs that returned an error
	StageDuration    *prometheus.HistogramVec // Duration of each pipeline stage

	// Dataset metrics
	EventsLoaded     prometheus.Gauge // Motion events in the last run
	Households       prometheus.Gauge // Households in the assembled dataset
	SyntheticSamples prometheus.Gauge // Minority rows added by SMOTE
	TrainRows        prometheus.Gauge
	TestRows         prometheus.Gauge

	// Model selection metrics
	SearchCandidates prometheus.Counter   // Candidate configurations evaluated
	SearchFailures   prometheus.Counter   // Candidates skipped because fitting failed
	CandidateScores  prometheus.Histogram // Distribution of candidate mean CV scores
	CVBestScore      prometheus.Gauge

	// Evaluation metrics
	TestAccuracy prometheus.Gauge
	TestF1       prometheus.Gauge // F1 of the multiple-occupancy class
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PipelineRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs started",
		}),
		PipelineFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Total number of pipeline runs that failed",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"stage"}),
		EventsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motion_events",
			Help:      "Number of motion events read by the last run",
		}),
		Households: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "households",
			Help:      "Number of households in the assembled dataset",
		}),
		SyntheticSamples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synthetic_samples",
			Help:      "Number of synthetic minority rows added by SMOTE",
		}),
		TrainRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_rows",
			Help:      "Number of rows in the training split",
		}),
		TestRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_rows",
			Help:      "Number of rows in the held-out split",
		}),
		SearchCandidates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_candidates_total",
			Help:      "Total number of hyperparameter candidates evaluated",
		}),
		SearchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Total number of hyperparameter candidates that failed to fit",
		}),
		CandidateScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_cv_score",
			Help:      "Distribution of candidate mean cross-validation scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CVBestScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cv_best_score",
			Help:      "Mean cross-validation score of the selected configuration",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_accuracy",
			Help:      "Accuracy of the refitted model on the held-out split",
		}),
		TestF1: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_f1",
			Help:      "F1 score of the multiple-occupancy class on the held-out split",
		}),
	}
}

// FailureRate is the share of started runs that failed, or 0 before any run.
func (m *Metrics) FailureRate() float64 {
	runs := counterValue(m.PipelineRuns)
	if runs == 0 {
		return 0
	}
	return counterValue(m.PipelineFailures) / runs
}
