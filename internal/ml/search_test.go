package ml

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGrid() ParamGrid {
	return ParamGrid{
		NEstimators:     []int{5, 10},
		MaxDepth:        []int{0, 2},
		MinSamplesSplit: []int{2, 4},
		MinSamplesLeaf:  []int{1},
	}
}

func TestParamGrid_Enumeration(t *testing.T) {
	g := DefaultGrid()
	assert.Equal(t, 3*4*3*3, g.Size())

	seen := make(map[Params]bool)
	for i := 0; i < g.Size(); i++ {
		p := g.At(i)
		assert.True(t, g.Contains(p))
		assert.False(t, seen[p], "duplicate combination %v", p)
		seen[p] = true
	}
	assert.Len(t, seen, g.Size())

	assert.Equal(t, Params{50, 0, 2, 1}, g.At(0))
	assert.Equal(t, Params{50, 0, 2, 2}, g.At(1))
	assert.False(t, g.Contains(Params{NEstimators: 7, MinSamplesSplit: 2, MinSamplesLeaf: 1}))
}

func TestParamGrid_EmptyDimension(t *testing.T) {
	g := ParamGrid{NEstimators: []int{10}}
	assert.Equal(t, 0, g.Size())
}

func TestStratifiedKFold(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1}
	folds, err := StratifiedKFold(y, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, folds, 3)

	var all []int
	for _, fold := range folds {
		var counts [2]int
		for _, r := range fold {
			counts[y[r]]++
		}
		assert.Equal(t, 2, counts[0])
		assert.GreaterOrEqual(t, counts[1], 2)
		all = append(all, fold...)
	}
	sort.Ints(all)
	for i, r := range all {
		assert.Equal(t, i, r)
	}

	_, err = StratifiedKFold(y, 1, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
	_, err = StratifiedKFold([]int{0, 1, 1, 1}, 2, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestRandomizedSearch_SelectsFromGrid(t *testing.T) {
	x, y := separable(15)
	grid := smallGrid()
	search := RandomizedSearch{Grid: grid, Iterations: 5, Folds: 3, Workers: 2, Seed: 42}

	res, err := search.Run(context.Background(), x, y)
	require.NoError(t, err)

	assert.True(t, grid.Contains(res.Best))
	assert.Len(t, res.Candidates, 5)
	assert.Equal(t, 0, res.Failed())
	assert.Equal(t, 3, res.Folds)
	assert.InDelta(t, 1.0, res.BestScore, 1e-9)
	require.NotNil(t, res.Model)
	assert.Equal(t, res.Best, res.Model.Params)
	assert.Equal(t, y, PredictAll(res.Model, x))

	// Every candidate scores perfectly on separable data, so the first
	// sampled one wins.
	assert.Equal(t, res.Candidates[0].Params, res.Best)
}

func TestRandomizedSearch_DeterministicAcrossWorkerCounts(t *testing.T) {
	x, y := separable(12)
	for i := range x {
		x[i][1] += float64(i%5) * 0.3
	}
	y[3], y[4] = y[4], y[3] // a little label noise

	run := func(workers int) *SearchResult {
		res, err := RandomizedSearch{Grid: DefaultGrid(), Iterations: 6, Folds: 3, Workers: workers, Seed: 11}.
			Run(context.Background(), x, y)
		require.NoError(t, err)
		return res
	}
	a, b := run(1), run(4)

	assert.Equal(t, a.Best, b.Best)
	assert.Equal(t, a.BestScore, b.BestScore)
	for i := range a.Candidates {
		assert.Equal(t, a.Candidates[i].Params, b.Candidates[i].Params)
		assert.Equal(t, a.Candidates[i].Scores, b.Candidates[i].Scores)
	}
}

func TestRandomizedSearch_SkipsInvalidCandidates(t *testing.T) {
	x, y := separable(10)
	grid := ParamGrid{
		NEstimators:     []int{5},
		MaxDepth:        []int{0},
		MinSamplesSplit: []int{1, 2},
		MinSamplesLeaf:  []int{1},
	}
	res, err := RandomizedSearch{Grid: grid, Iterations: 2, Folds: 2, Seed: 1}.Run(context.Background(), x, y)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, 2, res.Best.MinSamplesSplit)
}

func TestRandomizedSearch_NoViableModel(t *testing.T) {
	x, y := separable(10)
	grid := ParamGrid{
		NEstimators:     []int{0, -1},
		MaxDepth:        []int{0},
		MinSamplesSplit: []int{2},
		MinSamplesLeaf:  []int{1},
	}
	_, err := RandomizedSearch{Grid: grid, Iterations: 10, Folds: 2, Seed: 1}.Run(context.Background(), x, y)
	assert.ErrorIs(t, err, ErrNoViableModel)

	_, err = RandomizedSearch{Grid: ParamGrid{}, Seed: 1}.Run(context.Background(), x, y)
	assert.ErrorIs(t, err, ErrNoViableModel)
}

func TestRandomizedSearch_ClampsFolds(t *testing.T) {
	x, y := separable(3)
	res, err := RandomizedSearch{Grid: smallGrid(), Iterations: 2, Folds: 10, Seed: 1}.Run(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Folds)

	_, err = RandomizedSearch{Grid: smallGrid(), Seed: 1}.Run(context.Background(), x[:3], []int{0, 1, 1})
	assert.Error(t, err)
}

func TestRandomizedSearch_CancelledContext(t *testing.T) {
	x, y := separable(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RandomizedSearch{Grid: smallGrid(), Iterations: 4, Folds: 2, Seed: 1}.Run(ctx, x, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScorers(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	yPred := []int{1, 0, 1, 0}
	assert.Equal(t, 0.5, Accuracy(yTrue, yPred))
	assert.Equal(t, 0.5, F1(yTrue, yPred))
	assert.Equal(t, 0.0, F1([]int{0, 0}, []int{0, 0}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))

	s, err := ParseScoring("F1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, s([]int{1}, []int{1}))

	_, err = ParseScoring("roc_auc")
	assert.Error(t, err)
}
