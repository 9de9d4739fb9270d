package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DriftMethod names a two-sample distribution comparison.
type DriftMethod string

const (
	KolmogorovSmirnovTest    DriftMethod = "kolmogorov_smirnov"
	PopulationStabilityIndex DriftMethod = "population_stability_index"
)

// DefaultDriftThreshold is the KS distance above which a feature is
// flagged; PSI uses its conventional 0.2.
const DefaultDriftThreshold = 0.3

// MinDriftSamples is the smallest side for which drift is worth reporting.
const MinDriftSamples = 30

// DriftAlert is the comparison result for one feature and method.
type DriftAlert struct {
	FeatureName string      `json:"feature_name"`
	Method      DriftMethod `json:"method"`
	DriftScore  float64     `json:"drift_score"`
	Threshold   float64     `json:"threshold"`
	Severity    string      `json:"severity"` // none, medium, high or critical
}

// Drifted reports whether the score crossed the threshold.
func (a DriftAlert) Drifted() bool { return a.Severity != "none" }

// DriftDetector compares per-feature distributions of two row sets, such
// as the train and test halves of a split.
type DriftDetector struct {
	featureNames []string
	thresholds   map[DriftMethod]float64
	bins         int
}

func NewDriftDetector(featureNames []string, ksThreshold float64) *DriftDetector {
	if ksThreshold <= 0 {
		ksThreshold = DefaultDriftThreshold
	}
	return &DriftDetector{
		featureNames: featureNames,
		thresholds: map[DriftMethod]float64{
			KolmogorovSmirnovTest:    ksThreshold,
			PopulationStabilityIndex: 0.2,
		},
		bins: 10,
	}
}

// Compare scores every feature with every method, in schema order.
func (dd *DriftDetector) Compare(baseline, current [][]float64) []DriftAlert {
	if len(baseline) == 0 || len(current) == 0 {
		return nil
	}

	alerts := make([]DriftAlert, 0, 2*len(dd.featureNames))
	for f, name := range dd.featureNames {
		if f >= len(baseline[0]) {
			break
		}
		b := column(baseline, f)
		c := column(current, f)
		sort.Float64s(b)
		sort.Float64s(c)

		alerts = append(alerts,
			dd.alert(name, KolmogorovSmirnovTest, stat.KolmogorovSmirnov(b, nil, c, nil)),
			dd.alert(name, PopulationStabilityIndex, dd.populationStabilityIndex(b, c)),
		)
	}
	return alerts
}

func (dd *DriftDetector) alert(name string, method DriftMethod, score float64) DriftAlert {
	threshold := dd.thresholds[method]
	severity := "none"
	switch {
	case score > threshold*3:
		severity = "critical"
	case score > threshold*2:
		severity = "high"
	case score > threshold:
		severity = "medium"
	}
	return DriftAlert{FeatureName: name, Method: method, DriftScore: score, Threshold: threshold, Severity: severity}
}

// populationStabilityIndex bins both sorted samples over their joint range.
func (dd *DriftDetector) populationStabilityIndex(baseline, current []float64) float64 {
	lo := math.Min(baseline[0], current[0])
	hi := math.Max(baseline[len(baseline)-1], current[len(current)-1])
	if hi == lo {
		return 0
	}

	edges := make([]float64, dd.bins+1)
	floats.Span(edges, lo, hi)
	edges[dd.bins] = math.Inf(1)

	bp := stat.Histogram(nil, edges, baseline, nil)
	cp := stat.Histogram(nil, edges, current, nil)

	const eps = 1e-4
	var psi float64
	for i := range bp {
		p := math.Max(bp[i]/float64(len(baseline)), eps)
		q := math.Max(cp[i]/float64(len(current)), eps)
		psi += (q - p) * math.Log(q/p)
	}
	return psi
}

func column(x [][]float64, f int) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = row[f]
	}
	return out
}
