package cfg

import (
	"fmt"
	"time"

	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/pipeline"
)

// Validate re-checks settings after callers change them, for example with
// command line overrides.
func (s Settings) Validate() error {
	return validateSettings(&s)
}

// PipelineOptions converts validated settings into run options.
func (s Settings) PipelineOptions() (pipeline.Options, error) {
	convention, err := features.ParseBucketConvention(s.BucketConvention)
	if err != nil {
		return pipeline.Options{}, err
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}

	return pipeline.Options{
		Convention:         convention,
		Location:           loc,
		Neighbors:          s.Neighbors,
		TestRatio:          s.TestRatio,
		Grid:               s.Grid,
		Iterations:         s.Iterations,
		Folds:              s.Folds,
		Workers:            s.Workers,
		Scoring:            s.Scoring,
		PermutationRepeats: s.PermutationRepeats,
		Seed:               s.Seed,
	}, nil
}
