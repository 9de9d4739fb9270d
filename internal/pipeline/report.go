package pipeline

import (
	"occupancy-classifier/internal/dataset"
	"occupancy-classifier/internal/ml"
)

// Report is the structured result of a run. Presentation is left to the
// report package.
type Report struct {
	RunID            string                 `json:"run_id"`
	Households       int                    `json:"households"`
	Events           int                    `json:"events"`
	OriginalClasses  [2]int                 `json:"original_classes"`
	SyntheticSamples int                    `json:"synthetic_samples"`
	TrainSize        int                    `json:"train_size"`
	TestSize         int                    `json:"test_size"`
	Scaler           dataset.StandardScaler `json:"scaler"`
	Params           ml.Params              `json:"params"`
	CVScore          float64                `json:"cv_score"`
	Folds            int                    `json:"folds"`
	Candidates       []ml.CandidateResult   `json:"candidates"`
	Evaluation       ml.Evaluation          `json:"evaluation"`
	BaselineAccuracy float64                `json:"baseline_accuracy"`
	Importance       []ml.FeatureStats      `json:"importance"`
	ImportanceSource string                 `json:"importance_source"`
	ImportanceBase   float64                `json:"importance_baseline"`
	SplitDrift       []ml.DriftAlert        `json:"split_drift"`

	Model *ml.RandomForest `json:"-"`
}

// TotalSamples is the dataset size after rebalancing.
func (r *Report) TotalSamples() int {
	return r.Households + r.SyntheticSamples
}

// ImportanceSum is the sum of the reported importances. It is 1 for any
// completed run, whichever source produced the ranking.
func (r *Report) ImportanceSum() float64 {
	var sum float64
	for _, f := range r.Importance {
		sum += f.ImportanceScore
	}
	return sum
}

// ModelMetrics summarises the run for the model registry.
func (r *Report) ModelMetrics() ml.ModelMetrics {
	multiple := r.Evaluation.Classes[1]
	return ml.ModelMetrics{
		Accuracy:        r.Evaluation.Accuracy,
		CVScore:         r.CVScore,
		F1Score:         multiple.F1,
		Precision:       multiple.Precision,
		Recall:          multiple.Recall,
		TrainingSamples: r.TrainSize,
		TestSamples:     r.TestSize,
	}
}

// DriftedFeatures lists the alerts whose score crossed the threshold.
func (r *Report) DriftedFeatures() []ml.DriftAlert {
	var out []ml.DriftAlert
	for _, a := range r.SplitDrift {
		if a.Drifted() {
			out = append(out, a)
		}
	}
	return out
}
