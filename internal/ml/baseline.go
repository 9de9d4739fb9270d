package ml

// MajorityClassifier ignores its input and predicts the most frequent
// training label, ties going to class 0. It is the floor a fitted model
// has to beat.
type MajorityClassifier struct {
	proba [2]float64
}

func FitMajority(y []int) MajorityClassifier {
	var counts [2]int
	for _, label := range y {
		counts[label]++
	}
	var m MajorityClassifier
	if n := counts[0] + counts[1]; n > 0 {
		m.proba = [2]float64{float64(counts[0]) / float64(n), float64(counts[1]) / float64(n)}
	}
	return m
}

func (m MajorityClassifier) Predict([]float64) int {
	if m.proba[1] > m.proba[0] {
		return 1
	}
	return 0
}

func (m MajorityClassifier) PredictProba([]float64) [2]float64 { return m.proba }
