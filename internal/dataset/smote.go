package dataset

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

const DefaultNeighbors = 5

// Oversampler balances a binary dataset by SMOTE: each synthetic row lies
// on the segment between a minority row and one of its K nearest minority
// neighbours.
type Oversampler struct {
	K    int
	Rand *rand.Rand
}

// Resample returns new matrices where both classes have the same count.
// Original rows come first and are unchanged; synthetic rows are appended.
func (o Oversampler) Resample(x [][]float64, y []int) ([][]float64, []int, error) {
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("feature rows (%d) and labels (%d) differ", len(x), len(y))
	}
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("%w: nothing to resample", ErrEmptyDataset)
	}

	outX := cloneMatrix(x)
	outY := append([]int(nil), y...)

	counts := CountClasses(y)
	if counts[0] == counts[1] {
		return outX, outY, nil
	}

	minority := 0
	if counts[1] < counts[0] {
		minority = 1
	}
	deficit := counts[1-minority] - counts[minority]

	k := o.K
	if k <= 0 {
		k = DefaultNeighbors
	}
	if counts[minority] < k+1 {
		return nil, nil, fmt.Errorf("%w: minority class %d has %d samples, need at least %d for %d neighbours",
			ErrInsufficientSamples, minority, counts[minority], k+1, k)
	}

	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	var idx []int
	for i, label := range y {
		if label == minority {
			idx = append(idx, i)
		}
	}
	neighbors := nearestNeighbors(x, idx, k)

	// Cycle through minority rows so every row seeds roughly the same
	// number of synthetic samples.
	for n := 0; n < deficit; n++ {
		pos := n % len(idx)
		if pos == 0 && n > 0 {
			rng.Shuffle(len(idx), func(i, j int) {
				idx[i], idx[j] = idx[j], idx[i]
				neighbors[i], neighbors[j] = neighbors[j], neighbors[i]
			})
		}
		sample := x[idx[pos]]
		nb := x[neighbors[pos][rng.Intn(k)]]
		gap := rng.Float64()

		synthetic := make([]float64, len(sample))
		copy(synthetic, nb)
		floats.Sub(synthetic, sample)
		floats.Scale(gap, synthetic)
		floats.Add(synthetic, sample)

		outX = append(outX, synthetic)
		outY = append(outY, minority)
	}

	log.Info().
		Int("minority_class", minority).
		Int("synthetic", deficit).
		Int("neighbors", k).
		Int("total", len(outY)).
		Msg("Classes rebalanced")

	return outX, outY, nil
}

// nearestNeighbors returns, for each row in idx, the row indices of its k
// closest other rows from idx by Euclidean distance. Ties resolve to the
// lower row index.
func nearestNeighbors(x [][]float64, idx []int, k int) [][]int {
	out := make([][]int, len(idx))
	for a, i := range idx {
		type cand struct {
			row  int
			dist float64
		}
		cands := make([]cand, 0, len(idx)-1)
		for _, j := range idx {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, floats.Distance(x[i], x[j], 2)})
		}
		sort.SliceStable(cands, func(p, q int) bool {
			if cands[p].dist != cands[q].dist {
				return cands[p].dist < cands[q].dist
			}
			return cands[p].row < cands[q].row
		})
		nb := make([]int, k)
		for n := 0; n < k; n++ {
			nb[n] = cands[n].row
		}
		out[a] = nb
	}
	return out
}
