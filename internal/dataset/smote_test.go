package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced(majority, minority int) ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < majority; i++ {
		x = append(x, []float64{float64(i), float64(2 * i), 1})
		y = append(y, 1)
	}
	for i := 0; i < minority; i++ {
		x = append(x, []float64{100 + float64(i), -float64(i), 0})
		y = append(y, 0)
	}
	return x, y
}

func TestResample_BalancesExactly(t *testing.T) {
	testCases := []struct {
		name               string
		majority, minority int
		k                  int
	}{
		{"small deficit", 3, 2, 1},
		{"large deficit", 40, 6, 5},
		{"deficit larger than minority", 30, 4, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := imbalanced(tc.majority, tc.minority)
			o := Oversampler{K: tc.k, Rand: rand.New(rand.NewSource(42))}

			outX, outY, err := o.Resample(x, y)
			require.NoError(t, err)

			counts := CountClasses(outY)
			assert.Equal(t, counts[0], counts[1])
			assert.Len(t, outY, 2*tc.majority)
			assert.Len(t, outX, len(outY))
		})
	}
}

func TestResample_PreservesOriginalRows(t *testing.T) {
	x, y := imbalanced(5, 3)
	outX, outY, err := Oversampler{K: 2, Rand: rand.New(rand.NewSource(1))}.Resample(x, y)
	require.NoError(t, err)

	assert.Equal(t, x, outX[:len(x)])
	assert.Equal(t, y, outY[:len(y)])
	for _, label := range outY[len(y):] {
		assert.Equal(t, 0, label)
	}
}

func TestResample_SyntheticRowsInterpolateMinority(t *testing.T) {
	x, y := imbalanced(10, 4)
	outX, _, err := Oversampler{K: 3, Rand: rand.New(rand.NewSource(7))}.Resample(x, y)
	require.NoError(t, err)

	// Minority rows span [100,103] x [-3,0] with the last column fixed at 0.
	for _, row := range outX[len(x):] {
		assert.GreaterOrEqual(t, row[0], 100.0)
		assert.LessOrEqual(t, row[0], 103.0)
		assert.GreaterOrEqual(t, row[1], -3.0)
		assert.LessOrEqual(t, row[1], 0.0)
		assert.Equal(t, 0.0, row[2])
	}
}

func TestResample_InsufficientSamples(t *testing.T) {
	x, y := imbalanced(10, 3)
	_, _, err := Oversampler{K: 5}.Resample(x, y)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestResample_AlreadyBalanced(t *testing.T) {
	x, y := imbalanced(3, 3)
	outX, outY, err := Oversampler{K: 5}.Resample(x, y)
	require.NoError(t, err)
	assert.Equal(t, x, outX)
	assert.Equal(t, y, outY)
}

func TestResample_Deterministic(t *testing.T) {
	x, y := imbalanced(12, 4)
	a, _, err := Oversampler{K: 3, Rand: rand.New(rand.NewSource(9))}.Resample(x, y)
	require.NoError(t, err)
	b, _, err := Oversampler{K: 3, Rand: rand.New(rand.NewSource(9))}.Resample(x, y)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResample_Empty(t *testing.T) {
	_, _, err := Oversampler{}.Resample(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestNearestNeighbors(t *testing.T) {
	x := [][]float64{{0}, {1}, {5}, {6}, {20}}
	nb := nearestNeighbors(x, []int{0, 1, 2, 3}, 2)
	assert.Equal(t, [][]int{{1, 2}, {0, 2}, {3, 1}, {2, 1}}, nb)
}
