package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler removes the mean and scales to unit variance using
// statistics captured by Fit. Transform never refits.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit computes per-column mean and population standard deviation.
// Constant columns get a scale of 1 so they transform to zero.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: cannot fit scaler", ErrEmptyDataset)
	}
	cols := len(x[0])
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)

	column := make([]float64, len(x))
	for c := 0; c < cols; c++ {
		for r, row := range x {
			if len(row) != cols {
				return fmt.Errorf("row %d has %d columns, expected %d", r, len(row), cols)
			}
			column[r] = row[c]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		s.Mean[c] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[c] = std
	}
	return nil
}

// Transform returns a standardised copy of x.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, errors.New("scaler is not fitted")
	}
	out := make([][]float64, len(x))
	for r, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("row %d has %d columns, scaler fitted on %d", r, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for c, v := range row {
			scaled[c] = (v - s.Mean[c]) / s.Scale[c]
		}
		out[r] = scaled
	}
	return out, nil
}

// FitTransform fits on x and returns the transformed copy.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
