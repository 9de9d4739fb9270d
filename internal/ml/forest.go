package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest is a bootstrap-aggregated ensemble of CART trees. Each
// split considers sqrt(n_features) randomly drawn features.
type RandomForest struct {
	Params Params
	Seed   int64

	trees       []*decisionTree
	nFeatures   int
	importances []float64
}

func NewRandomForest(params Params, seed int64) (*RandomForest, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RandomForest{Params: params, Seed: seed}, nil
}

// Fit grows all trees on x and y. The same seed and data always produce
// the same forest.
func (f *RandomForest) Fit(x [][]float64, y []int) error {
	if err := f.Params.Validate(); err != nil {
		return err
	}
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("fit needs matching non-empty rows and labels, got %d rows and %d labels", len(x), len(y))
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}

	f.nFeatures = len(x[0])
	maxFeatures := int(math.Sqrt(float64(f.nFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	n := len(x)
	f.trees = make([]*decisionTree, 0, f.Params.NEstimators)
	f.importances = make([]float64, f.nFeatures)

	for t := 0; t < f.Params.NEstimators; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		tree := growTree(x, y, sample, f.Params, maxFeatures, rng)
		f.trees = append(f.trees, tree)

		// Each tree's impurity decreases are normalised before averaging.
		var total float64
		for _, v := range tree.importances {
			total += v
		}
		if total > 0 {
			for i, v := range tree.importances {
				f.importances[i] += v / total
			}
		}
	}

	var total float64
	for _, v := range f.importances {
		total += v
	}
	if total > 0 {
		for i := range f.importances {
			f.importances[i] /= total
		}
	}
	return nil
}

func (f *RandomForest) PredictProba(row []float64) [2]float64 {
	var out [2]float64
	if len(f.trees) == 0 {
		return out
	}
	for _, t := range f.trees {
		p := t.predictProba(row)
		out[0] += p[0]
		out[1] += p[1]
	}
	out[0] /= float64(len(f.trees))
	out[1] /= float64(len(f.trees))
	return out
}

// Predict returns the class with the higher mean probability; ties go to 0.
func (f *RandomForest) Predict(row []float64) int {
	p := f.PredictProba(row)
	if p[1] > p[0] {
		return 1
	}
	return 0
}

// FeatureImportances returns the mean decrease in impurity per feature.
// The values sum to 1 unless no tree made a split, in which case all are 0.
func (f *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}

func (f *RandomForest) Fitted() bool { return len(f.trees) > 0 }

// MaxTreeDepth is the depth of the deepest tree in the ensemble.
func (f *RandomForest) MaxTreeDepth() int {
	d := 0
	for _, t := range f.trees {
		d = max(d, t.depth())
	}
	return d
}
