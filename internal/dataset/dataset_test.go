package dataset

import (
	"testing"

	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_LeftJoinZeroFills(t *testing.T) {
	households := []model.Household{
		{ID: 3, MultipleOccupancy: true},
		{ID: 1, MultipleOccupancy: false},
		{ID: 2, MultipleOccupancy: true},
	}
	vectors := map[int64]features.FeatureVector{
		1: {HomeID: 1, MotionCount: 10, UniqueLocations: 2},
		3: {HomeID: 3, MotionCount: 40, UniqueLocations: 5},
		99: {HomeID: 99, MotionCount: 1}, // no household record
	}

	ds, err := Assemble(households, vectors)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, ds.HomeIDs)
	assert.Equal(t, []int{0, 1, 1}, ds.Y)
	require.Len(t, ds.X, 3)
	for _, row := range ds.X {
		assert.Len(t, row, features.NumFeatures)
	}
	assert.Equal(t, make([]float64, features.NumFeatures), ds.X[1])
	assert.Equal(t, 40.0, ds.X[2][0])
	assert.Equal(t, [2]int{1, 2}, ds.ClassCounts())
}

func TestAssemble_Empty(t *testing.T) {
	_, err := Assemble(nil, map[int64]features.FeatureVector{1: {}})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	households := []model.Household{{ID: 2}, {ID: 1, MultipleOccupancy: true}}
	_, err := Assemble(households, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), households[0].ID)
}
