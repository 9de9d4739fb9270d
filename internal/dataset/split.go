package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const DefaultTestRatio = 0.2

// Split holds disjoint train and test partitions.
type Split struct {
	XTrain [][]float64
	YTrain []int
	XTest  [][]float64
	YTest  []int
}

// StratifiedSplit partitions rows so each class contributes
// ceil(count*testRatio) rows to the test set, keeping at least one row of
// every class on each side.
func StratifiedSplit(x [][]float64, y []int, testRatio float64, rng *rand.Rand) (Split, error) {
	if len(x) != len(y) {
		return Split{}, fmt.Errorf("feature rows (%d) and labels (%d) differ", len(x), len(y))
	}
	if len(y) == 0 {
		return Split{}, fmt.Errorf("%w: nothing to split", ErrEmptyDataset)
	}
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("test ratio must be in (0, 1), got %f", testRatio)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	var byClass [2][]int
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	var trainIdx, testIdx []int
	for class, rows := range byClass {
		if len(rows) == 0 {
			continue
		}
		if len(rows) < 2 {
			return Split{}, fmt.Errorf("%w: class %d has %d samples", ErrUnstratifiable, class, len(rows))
		}
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		nTest := int(math.Ceil(float64(len(rows))*testRatio - 1e-9))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > len(rows)-1 {
			nTest = len(rows) - 1
		}
		testIdx = append(testIdx, rows[:nTest]...)
		trainIdx = append(trainIdx, rows[nTest:]...)
	}

	// Keep the original row order inside each partition.
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	s := Split{
		XTrain: make([][]float64, len(trainIdx)),
		YTrain: make([]int, len(trainIdx)),
		XTest:  make([][]float64, len(testIdx)),
		YTest:  make([]int, len(testIdx)),
	}
	for i, r := range trainIdx {
		s.XTrain[i] = append([]float64(nil), x[r]...)
		s.YTrain[i] = y[r]
	}
	for i, r := range testIdx {
		s.XTest[i] = append([]float64(nil), x[r]...)
		s.YTest[i] = y[r]
	}
	return s, nil
}
