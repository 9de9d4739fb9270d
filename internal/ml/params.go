package ml

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParams = errors.New("invalid hyperparameters")
	ErrNoViableModel = errors.New("no viable model")
	ErrNotFitted     = errors.New("model is not fitted")
)

// Params is one point of the hyperparameter space. MaxDepth 0 means the
// trees grow until leaves are pure or the split thresholds stop them.
type Params struct {
	NEstimators     int `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf" yaml:"min_samples_leaf"`
}

func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators must be >= 1, got %d", ErrInvalidParams, p.NEstimators)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: max_depth must be >= 0, got %d", ErrInvalidParams, p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("%w: min_samples_split must be >= 2, got %d", ErrInvalidParams, p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be >= 1, got %d", ErrInvalidParams, p.MinSamplesLeaf)
	}
	return nil
}

func (p Params) String() string {
	depth := "none"
	if p.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", p.MaxDepth)
	}
	return fmt.Sprintf("n_estimators=%d max_depth=%s min_samples_split=%d min_samples_leaf=%d",
		p.NEstimators, depth, p.MinSamplesSplit, p.MinSamplesLeaf)
}

// Values returns the parameters as named values for reporting.
func (p Params) Values() map[string]any {
	var depth any
	if p.MaxDepth > 0 {
		depth = p.MaxDepth
	}
	return map[string]any{
		"n_estimators":      p.NEstimators,
		"max_depth":         depth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
	}
}

// ParamGrid enumerates candidate values per hyperparameter. A MaxDepth of
// 0 stands for unbounded depth.
type ParamGrid struct {
	NEstimators     []int `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        []int `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit []int `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  []int `json:"min_samples_leaf" yaml:"min_samples_leaf"`
}

func DefaultGrid() ParamGrid {
	return ParamGrid{
		NEstimators:     []int{50, 100, 200},
		MaxDepth:        []int{0, 10, 20, 30},
		MinSamplesSplit: []int{2, 5, 10},
		MinSamplesLeaf:  []int{1, 2, 4},
	}
}

// Size is the number of distinct combinations in the grid.
func (g ParamGrid) Size() int {
	return len(g.NEstimators) * len(g.MaxDepth) * len(g.MinSamplesSplit) * len(g.MinSamplesLeaf)
}

// At returns combination i, with MinSamplesLeaf varying fastest.
func (g ParamGrid) At(i int) Params {
	leaf := i % len(g.MinSamplesLeaf)
	i /= len(g.MinSamplesLeaf)
	split := i % len(g.MinSamplesSplit)
	i /= len(g.MinSamplesSplit)
	depth := i % len(g.MaxDepth)
	i /= len(g.MaxDepth)

	return Params{
		NEstimators:     g.NEstimators[i],
		MaxDepth:        g.MaxDepth[depth],
		MinSamplesSplit: g.MinSamplesSplit[split],
		MinSamplesLeaf:  g.MinSamplesLeaf[leaf],
	}
}

// Contains reports whether p is one of the grid's combinations.
func (g ParamGrid) Contains(p Params) bool {
	return containsInt(g.NEstimators, p.NEstimators) &&
		containsInt(g.MaxDepth, p.MaxDepth) &&
		containsInt(g.MinSamplesSplit, p.MinSamplesSplit) &&
		containsInt(g.MinSamplesLeaf, p.MinSamplesLeaf)
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
