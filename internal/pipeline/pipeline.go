// Package pipeline runs the occupancy classifier end to end: feature
// aggregation, dataset assembly, SMOTE rebalancing, stratified split and
// scaling, randomized hyperparameter search and held-out evaluation.
//
// Stages run strictly in sequence. Each stage receives its inputs as
// arguments and its own random source derived from Options.Seed, so a run
// is reproducible for a fixed seed and input.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"occupancy-classifier/internal/dataset"
	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/ml"
	"occupancy-classifier/internal/model"
)

// Stage names used for logging and duration metrics.
const (
	StageAggregate = "aggregate"
	StageAssemble  = "assemble"
	StageRebalance = "rebalance"
	StageSplit     = "split"
	StageScale     = "scale"
	StageSearch    = "search"
	StageEvaluate  = "evaluate"
)

// Options configures every stage of a run.
type Options struct {
	Convention         features.BucketConvention
	Location           *time.Location
	Neighbors          int
	TestRatio          float64
	Grid               ml.ParamGrid
	Iterations         int
	Folds              int
	Workers            int
	Scoring            string
	PermutationRepeats int
	Seed               int64

	// ImportancePath, when set, receives the importance ranking as JSON.
	ImportancePath string
}

func DefaultOptions() Options {
	return Options{
		Convention:         features.HalfOpen,
		Neighbors:          dataset.DefaultNeighbors,
		TestRatio:          dataset.DefaultTestRatio,
		Grid:               ml.DefaultGrid(),
		Iterations:         ml.DefaultSearchIterations,
		Folds:              ml.DefaultFolds,
		Scoring:            "accuracy",
		PermutationRepeats: ml.DefaultPermutationRepeats,
		Seed:               42,
	}
}

// Metrics receives run statistics. metrics.MetricsWrapper implements it.
type Metrics interface {
	RunStarted()
	RunFailed()
	ObserveStage(stage string, d time.Duration)
	SetEvents(n int)
	SetDataset(households, synthetic, train, test int)
	ObserveCandidate(score float64, failed bool)
	SetScores(cvBest, accuracy, f1 float64)
}

type nopMetrics struct{}

func (nopMetrics) RunStarted()                         {}
func (nopMetrics) RunFailed()                          {}
func (nopMetrics) ObserveStage(string, time.Duration)  {}
func (nopMetrics) SetEvents(int)                       {}
func (nopMetrics) SetDataset(int, int, int, int)       {}
func (nopMetrics) ObserveCandidate(float64, bool)      {}
func (nopMetrics) SetScores(float64, float64, float64) {}

// Per-stage offsets mixed into Options.Seed.
const (
	seedRebalance int64 = iota + 1
	seedSplit
	seedSearch
	seedPermutation
)

func stageRand(seed, stage int64) *rand.Rand {
	return rand.New(rand.NewSource(seed*31 + stage))
}

// Run executes the pipeline over the two input relations. metrics may be
// nil.
func Run(ctx context.Context, households []model.Household, events []model.MotionEvent, opts Options, metrics Metrics) (*Report, error) {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	metrics.RunStarted()
	report, err := run(ctx, households, events, opts, metrics)
	if err != nil {
		metrics.RunFailed()
		return nil, err
	}
	return report, nil
}

func run(ctx context.Context, households []model.Household, events []model.MotionEvent, opts Options, metrics Metrics) (*Report, error) {
	scorer, err := ml.ParseScoring(opts.Scoring)
	if err != nil {
		return nil, err
	}
	if len(households) == 0 {
		return nil, fmt.Errorf("%w: no households", dataset.ErrEmptyDataset)
	}
	metrics.SetEvents(len(events))
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Int("households", len(households)).Int("events", len(events)).Msg("Pipeline started")

	timed := func(stage string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := fn()
		metrics.ObserveStage(stage, time.Since(start))
		if err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
		return nil
	}

	var vectors map[int64]features.FeatureVector
	if err := timed(StageAggregate, func() error {
		agg := features.Aggregator{Convention: opts.Convention, Location: opts.Location}
		vectors = agg.AggregateAll(events)
		return nil
	}); err != nil {
		return nil, err
	}

	var ds *dataset.Dataset
	if err := timed(StageAssemble, func() (err error) {
		ds, err = dataset.Assemble(households, vectors)
		return err
	}); err != nil {
		return nil, err
	}
	original := ds.ClassCounts()

	var x [][]float64
	var y []int
	if err := timed(StageRebalance, func() (err error) {
		o := dataset.Oversampler{K: opts.Neighbors, Rand: stageRand(opts.Seed, seedRebalance)}
		x, y, err = o.Resample(ds.X, ds.Y)
		return err
	}); err != nil {
		return nil, err
	}
	synthetic := len(y) - ds.Len()

	var sp dataset.Split
	if err := timed(StageSplit, func() (err error) {
		sp, err = dataset.StratifiedSplit(x, y, opts.TestRatio, stageRand(opts.Seed, seedSplit))
		return err
	}); err != nil {
		return nil, err
	}
	drift := checkSplitDrift(sp, logger)

	var scaler dataset.StandardScaler
	var xTrain, xTest [][]float64
	if err := timed(StageScale, func() (err error) {
		if xTrain, err = scaler.FitTransform(sp.XTrain); err != nil {
			return err
		}
		xTest, err = scaler.Transform(sp.XTest)
		return err
	}); err != nil {
		return nil, err
	}
	metrics.SetDataset(ds.Len(), synthetic, len(sp.YTrain), len(sp.YTest))

	var sr *ml.SearchResult
	if err := timed(StageSearch, func() (err error) {
		search := ml.RandomizedSearch{
			Grid:       opts.Grid,
			Iterations: opts.Iterations,
			Folds:      opts.Folds,
			Workers:    opts.Workers,
			Seed:       stageRand(opts.Seed, seedSearch).Int63(),
			Scoring:    scorer,
		}
		sr, err = search.Run(ctx, xTrain, sp.YTrain)
		return err
	}); err != nil {
		return nil, err
	}
	for _, c := range sr.Candidates {
		metrics.ObserveCandidate(c.MeanScore, c.Err != nil)
	}

	var ev, baseline ml.Evaluation
	fi := ml.NewFeatureImportance(features.Names(), opts.PermutationRepeats, opts.ImportancePath)
	if err := timed(StageEvaluate, func() (err error) {
		if ev, err = ml.Evaluate(sr.Model, xTest, sp.YTest); err != nil {
			return err
		}
		if baseline, err = ml.Evaluate(ml.FitMajority(sp.YTrain), xTest, sp.YTest); err != nil {
			return err
		}
		fi.Calculate(sr.Model, xTest, sp.YTest, stageRand(opts.Seed, seedPermutation))
		return fi.Save()
	}); err != nil {
		return nil, err
	}
	metrics.SetScores(sr.BestScore, ev.Accuracy, ev.Classes[1].F1)

	report := &Report{
		RunID:            runID,
		Households:       ds.Len(),
		Events:           len(events),
		OriginalClasses:  original,
		SyntheticSamples: synthetic,
		TrainSize:        len(sp.YTrain),
		TestSize:         len(sp.YTest),
		Scaler:           scaler,
		Params:           sr.Best,
		CVScore:          sr.BestScore,
		Folds:            sr.Folds,
		Candidates:       sr.Candidates,
		Evaluation:       ev,
		BaselineAccuracy: baseline.Accuracy,
		Importance:       fi.Ranking(),
		ImportanceSource: fi.Source(),
		ImportanceBase:   fi.BaselineScore(),
		SplitDrift:       drift,
		Model:            sr.Model,
	}

	logger.Info().
		Int("households", report.Households).
		Int("synthetic", report.SyntheticSamples).
		Float64("cv_score", report.CVScore).
		Float64("accuracy", ev.Accuracy).
		Float64("baseline_accuracy", baseline.Accuracy).
		Str("params", sr.Best.String()).
		Int("failed_candidates", sr.Failed()).
		Int("max_tree_depth", sr.Model.MaxTreeDepth()).
		Str("importance_source", fi.Source()).
		Strs("top_features", fi.GetTopFeatures(3)).
		Msg("Pipeline finished")

	return report, nil
}

// checkSplitDrift compares the unscaled train and test halves feature by
// feature. Small test sets produce noisy scores, so warnings are only
// logged once both halves reach ml.MinDriftSamples.
func checkSplitDrift(sp dataset.Split, logger zerolog.Logger) []ml.DriftAlert {
	alerts := ml.NewDriftDetector(features.Names(), ml.DefaultDriftThreshold).Compare(sp.XTrain, sp.XTest)
	if len(sp.YTrain) < ml.MinDriftSamples || len(sp.YTest) < ml.MinDriftSamples {
		return alerts
	}
	for _, a := range alerts {
		if a.Drifted() {
			logger.Warn().
				Str("feature", a.FeatureName).
				Str("method", string(a.Method)).
				Float64("score", a.DriftScore).
				Str("severity", a.Severity).
				Msg("Train and test distributions differ")
		}
	}
	return alerts
}
