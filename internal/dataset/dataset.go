// Package dataset turns aggregated feature vectors into labelled matrices
// and prepares them for training: class rebalancing, stratified splitting
// and train-only standardisation.
package dataset

import (
	"errors"
	"fmt"
	"sort"

	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/model"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyDataset        = errors.New("empty dataset")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrUnstratifiable      = errors.New("class too small to stratify")
)

// Dataset is a feature matrix with aligned labels. Columns follow
// features.Schema.
type Dataset struct {
	HomeIDs []int64
	X       [][]float64
	Y       []int
}

func (d *Dataset) Len() int { return len(d.Y) }

// ClassCounts returns the number of rows labelled 0 and 1.
func (d *Dataset) ClassCounts() [2]int {
	return CountClasses(d.Y)
}

func CountClasses(y []int) [2]int {
	var counts [2]int
	for _, label := range y {
		counts[label]++
	}
	return counts
}

// Assemble left-joins households to their feature vectors. Households with
// no vector get the all-zero vector. Rows are ordered by household id.
func Assemble(households []model.Household, vectors map[int64]features.FeatureVector) (*Dataset, error) {
	if len(households) == 0 {
		return nil, fmt.Errorf("%w: no households", ErrEmptyDataset)
	}

	sorted := make([]model.Household, len(households))
	copy(sorted, households)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ds := &Dataset{
		HomeIDs: make([]int64, 0, len(sorted)),
		X:       make([][]float64, 0, len(sorted)),
		Y:       make([]int, 0, len(sorted)),
	}

	missing := 0
	for _, h := range sorted {
		fv, ok := vectors[h.ID]
		if !ok {
			fv = features.Zero(h.ID)
			missing++
		}
		ds.HomeIDs = append(ds.HomeIDs, h.ID)
		ds.X = append(ds.X, fv.Values())
		ds.Y = append(ds.Y, h.Label())
	}

	counts := ds.ClassCounts()
	log.Info().
		Int("households", ds.Len()).
		Int("without_motion", missing).
		Int("single", counts[0]).
		Int("multiple", counts[1]).
		Msg("Dataset assembled")

	return ds, nil
}

func cloneMatrix(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
