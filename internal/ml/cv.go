package ml

import (
	"fmt"
	"math/rand"
	"strings"
)

// Scorer compares true and predicted labels; higher is better.
type Scorer func(yTrue, yPred []int) float64

func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// F1 scores the positive (multiple occupancy) class.
func F1(yTrue, yPred []int) float64 {
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1:
			fp++
		case yTrue[i] == 1:
			fn++
		}
	}
	if 2*tp+fp+fn == 0 {
		return 0
	}
	return 2 * float64(tp) / float64(2*tp+fp+fn)
}

func ParseScoring(name string) (Scorer, error) {
	switch strings.ToLower(name) {
	case "", "accuracy":
		return Accuracy, nil
	case "f1":
		return F1, nil
	default:
		return nil, fmt.Errorf("unknown scoring %q", name)
	}
}

// StratifiedKFold shuffles each class and deals its rows round-robin into
// k folds. It returns the validation row indices of every fold.
func StratifiedKFold(y []int, k int, rng *rand.Rand) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs at least 2 folds, got %d", k)
	}
	var byClass [2][]int
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	for class, rows := range byClass {
		if len(rows) > 0 && len(rows) < k {
			return nil, fmt.Errorf("class %d has %d samples, fewer than %d folds", class, len(rows), k)
		}
	}

	folds := make([][]int, k)
	for _, rows := range byClass {
		rows = append([]int(nil), rows...)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for i, r := range rows {
			folds[i%k] = append(folds[i%k], r)
		}
	}
	return folds, nil
}

// CrossValidate fits a forest per fold on the remaining rows and scores it
// on the held-out fold.
func CrossValidate(x [][]float64, y []int, params Params, folds [][]int, seed int64, score Scorer) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(folds))
	held := make([]bool, len(y))
	for f, fold := range folds {
		for i := range held {
			held[i] = false
		}
		for _, r := range fold {
			held[r] = true
		}

		var xTrain, xVal [][]float64
		var yTrain, yVal []int
		for i := range y {
			if held[i] {
				xVal = append(xVal, x[i])
				yVal = append(yVal, y[i])
			} else {
				xTrain = append(xTrain, x[i])
				yTrain = append(yTrain, y[i])
			}
		}

		forest, err := NewRandomForest(params, seed)
		if err != nil {
			return nil, err
		}
		if err := forest.Fit(xTrain, yTrain); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, score(yVal, PredictAll(forest, xVal)))
	}
	return scores, nil
}
