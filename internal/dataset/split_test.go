package dataset

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balanced(perClass int) ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < perClass; i++ {
		x = append(x, []float64{float64(i), 1})
		y = append(y, 0)
		x = append(x, []float64{float64(i) + 0.5, 2})
		y = append(y, 1)
	}
	return x, y
}

func TestStratifiedSplit_PreservesBalance(t *testing.T) {
	for _, perClass := range []int{3, 5, 7, 50} {
		x, y := balanced(perClass)
		s, err := StratifiedSplit(x, y, 0.2, rand.New(rand.NewSource(42)))
		require.NoError(t, err)

		train := CountClasses(s.YTrain)
		test := CountClasses(s.YTest)
		assert.Equal(t, train[0], train[1], "train balance for %d per class", perClass)
		assert.Equal(t, test[0], test[1], "test balance for %d per class", perClass)
		assert.Equal(t, len(y), len(s.YTrain)+len(s.YTest))

		wantTest := int(math.Ceil(float64(perClass) * 0.2))
		assert.Equal(t, wantTest, test[0])
	}
}

func TestStratifiedSplit_Disjoint(t *testing.T) {
	x, y := balanced(10)
	s, err := StratifiedSplit(x, y, 0.2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	seen := make(map[float64]bool)
	for _, row := range s.XTrain {
		seen[row[0]*10+row[1]] = true
	}
	for _, row := range s.XTest {
		assert.False(t, seen[row[0]*10+row[1]], "row %v in both partitions", row)
	}
}

func TestStratifiedSplit_Deterministic(t *testing.T) {
	x, y := balanced(20)
	a, err := StratifiedSplit(x, y, 0.2, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := StratifiedSplit(x, y, 0.2, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	x, y := balanced(3)

	_, err := StratifiedSplit(x, y, 0, nil)
	assert.Error(t, err)

	_, err = StratifiedSplit(nil, nil, 0.2, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = StratifiedSplit([][]float64{{1}, {2}, {3}}, []int{0, 0, 1}, 0.2, nil)
	assert.ErrorIs(t, err, ErrUnstratifiable)
}
