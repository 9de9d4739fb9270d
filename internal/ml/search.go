package ml

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultSearchIterations = 20
	DefaultFolds            = 5
)

// RandomizedSearch samples Iterations distinct combinations from Grid and
// scores each by stratified k-fold cross-validation. Candidates are
// evaluated concurrently and share nothing mutable.
type RandomizedSearch struct {
	Grid       ParamGrid
	Iterations int
	Folds      int
	Workers    int
	Seed       int64
	Scoring    Scorer
}

// CandidateResult is the outcome of one sampled configuration.
type CandidateResult struct {
	Order     int           `json:"order"`
	Params    Params        `json:"params"`
	Scores    []float64     `json:"scores,omitempty"`
	MeanScore float64       `json:"mean_score"`
	StdScore  float64       `json:"std_score"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

type SearchResult struct {
	Best       Params
	BestScore  float64
	Model      *RandomForest
	Folds      int
	Candidates []CandidateResult
}

// Failed counts candidates that could not be scored.
func (r *SearchResult) Failed() int {
	return countFailed(r.Candidates)
}

// Run searches on the training rows only and returns a forest refitted on
// all of them with the winning configuration. Ties keep the earliest
// sampled candidate.
func (s RandomizedSearch) Run(ctx context.Context, x [][]float64, y []int) (*SearchResult, error) {
	size := s.Grid.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: parameter grid is empty", ErrNoViableModel)
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("search needs matching non-empty rows and labels, got %d rows and %d labels", len(x), len(y))
	}

	scoring := s.Scoring
	if scoring == nil {
		scoring = Accuracy
	}
	iterations := s.Iterations
	if iterations <= 0 {
		iterations = DefaultSearchIterations
	}
	if iterations > size {
		log.Warn().
			Int("iterations", iterations).
			Int("grid_size", size).
			Msg("Search iterations exceed grid size, evaluating the whole grid")
		iterations = size
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	k, err := s.foldCount(y)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.Seed))
	order := rng.Perm(size)[:iterations]
	folds, err := StratifiedKFold(y, k, rng)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("candidates", iterations).
		Int("grid_size", size).
		Int("folds", k).
		Int("workers", workers).
		Msg("Starting hyperparameter search")

	results := make([]CandidateResult, iterations)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, gridIdx := range order {
		i, gridIdx := i, gridIdx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res := CandidateResult{Order: i, Params: s.Grid.At(gridIdx)}
			scores, err := CrossValidate(x, y, res.Params, folds, s.Seed, scoring)
			if err != nil {
				res.Err = err
			} else {
				res.Scores = scores
				res.MeanScore, res.StdScore = stat.PopMeanStdDev(scores, nil)
			}
			res.Duration = time.Since(start)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bestIdx := -1
	for i, res := range results {
		if res.Err != nil {
			log.Warn().
				Err(res.Err).
				Int("candidate", i).
				Str("params", res.Params.String()).
				Msg("Skipping candidate")
			continue
		}
		log.Debug().
			Int("candidate", i).
			Str("params", res.Params.String()).
			Float64("mean_score", res.MeanScore).
			Float64("std_score", res.StdScore).
			Msg("Candidate scored")
		if bestIdx < 0 || res.MeanScore > results[bestIdx].MeanScore {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, fmt.Errorf("%w: all %d candidates failed", ErrNoViableModel, iterations)
	}

	best := results[bestIdx]
	model, err := NewRandomForest(best.Params, s.Seed)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(x, y); err != nil {
		return nil, fmt.Errorf("refit best candidate: %w", err)
	}

	log.Info().
		Str("params", best.Params.String()).
		Float64("cv_score", best.MeanScore).
		Int("failed", countFailed(results)).
		Msg("Hyperparameter search finished")

	return &SearchResult{
		Best:       best.Params,
		BestScore:  best.MeanScore,
		Model:      model,
		Folds:      k,
		Candidates: results,
	}, nil
}

// foldCount clamps the configured fold count to the smallest class size.
func (s RandomizedSearch) foldCount(y []int) (int, error) {
	k := s.Folds
	if k <= 0 {
		k = DefaultFolds
	}
	var counts [2]int
	for _, label := range y {
		counts[label]++
	}
	smallest := min(counts[0], counts[1])
	if smallest < 2 {
		return 0, fmt.Errorf("cross-validation needs at least 2 samples per class, got %v", counts)
	}
	if k > smallest {
		log.Warn().
			Int("folds", k).
			Int("smallest_class", smallest).
			Msg("Reducing fold count to smallest class size")
		k = smallest
	}
	return k, nil
}

func countFailed(results []CandidateResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
