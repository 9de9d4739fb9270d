package ml

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const DefaultPermutationRepeats = 5

// ImportanceModel is a classifier that reports impurity-based importances.
type ImportanceModel interface {
	Classifier
	FeatureImportances() []float64
}

// FeatureStats is the importance of a single feature.
type FeatureStats struct {
	Name             string  `json:"name"`
	Rank             int     `json:"rank"`
	ImportanceScore  float64 `json:"importance_score"`
	PermutationScore float64 `json:"permutation_score"`
}

// FeatureImportance ranks a fitted model's features. ImportanceScore is the
// model's mean decrease in impurity; PermutationScore is the mean accuracy
// drop on held-out rows when the feature's column is shuffled.
type FeatureImportance struct {
	featureNames   []string
	importanceData map[string]*FeatureStats
	baselineScore  float64
	source         string
	repeats        int
	savePath       string
}

func NewFeatureImportance(featureNames []string, repeats int, savePath string) *FeatureImportance {
	if repeats <= 0 {
		repeats = DefaultPermutationRepeats
	}
	fi := &FeatureImportance{
		featureNames:   featureNames,
		importanceData: make(map[string]*FeatureStats),
		repeats:        repeats,
		savePath:       savePath,
	}
	for _, name := range featureNames {
		fi.importanceData[name] = &FeatureStats{Name: name}
	}
	return fi
}

// Importance sources, in order of preference.
const (
	ImportanceImpurity    = "impurity"
	ImportancePermutation = "permutation"
	ImportanceUniform     = "uniform"
)

// Calculate fills in both importance measures. x and y are the held-out
// rows; they are not modified.
//
// ImportanceScore always sums to 1. It is the model's impurity importance
// when any tree split; otherwise the positive permutation drops normalised
// to 1; otherwise every feature gets an equal share.
func (fi *FeatureImportance) Calculate(model ImportanceModel, x [][]float64, y []int, rng *rand.Rand) {
	if len(x) > 0 {
		fi.permute(model, x, y, rng)
	}

	scores := make([]float64, len(fi.featureNames))
	mdi := model.FeatureImportances()
	for i := range scores {
		if i < len(mdi) {
			scores[i] = mdi[i]
		}
	}
	fi.source = ImportanceImpurity

	if floats.Sum(scores) <= 0 {
		for i, name := range fi.featureNames {
			scores[i] = math.Max(fi.importanceData[name].PermutationScore, 0)
		}
		fi.source = ImportancePermutation
	}
	if total := floats.Sum(scores); total > 0 {
		floats.Scale(1/total, scores)
	} else {
		for i := range scores {
			scores[i] = 1 / float64(len(scores))
		}
		fi.source = ImportanceUniform
	}

	for i, name := range fi.featureNames {
		fi.importanceData[name].ImportanceScore = scores[i]
	}
}

func (fi *FeatureImportance) permute(model ImportanceModel, x [][]float64, y []int, rng *rand.Rand) {
	fi.baselineScore = Accuracy(y, PredictAll(model, x))

	permuted := make([][]float64, len(x))
	for i := range x {
		permuted[i] = append([]float64(nil), x[i]...)
	}
	order := make([]int, len(x))

	for featureIdx, name := range fi.featureNames {
		if featureIdx >= len(x[0]) {
			continue
		}
		var drop float64
		for r := 0; r < fi.repeats; r++ {
			for i := range order {
				order[i] = i
			}
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			for i := range permuted {
				permuted[i][featureIdx] = x[order[i]][featureIdx]
			}
			drop += fi.baselineScore - Accuracy(y, PredictAll(model, permuted))
		}
		for i := range permuted {
			permuted[i][featureIdx] = x[i][featureIdx]
		}
		fi.importanceData[name].PermutationScore = drop / float64(fi.repeats)
	}
}

// BaselineScore is the held-out accuracy before any column was shuffled.
func (fi *FeatureImportance) BaselineScore() float64 { return fi.baselineScore }

// Source names where ImportanceScore came from.
func (fi *FeatureImportance) Source() string { return fi.source }

// Ranking returns the features by descending ImportanceScore. Ties keep
// schema order.
func (fi *FeatureImportance) Ranking() []FeatureStats {
	out := make([]FeatureStats, 0, len(fi.featureNames))
	for _, name := range fi.featureNames {
		out = append(out, *fi.importanceData[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImportanceScore > out[j].ImportanceScore
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// GetTopFeatures returns the names of the n most important features.
func (fi *FeatureImportance) GetTopFeatures(n int) []string {
	ranking := fi.Ranking()
	if n > len(ranking) {
		n = len(ranking)
	}
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = ranking[i].Name
	}
	return result
}

// Save writes the ranking as JSON to the configured path.
func (fi *FeatureImportance) Save() error {
	if fi.savePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(fi.savePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fi.Ranking(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fi.savePath, data, 0o600)
}
