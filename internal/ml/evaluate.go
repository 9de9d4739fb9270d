package ml

import "fmt"

var ClassNames = [2]string{"single", "multiple"}

// ClassMetrics holds precision, recall, F1 and support for one class or
// for an average across classes.
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation is the held-out classification report. Confusion is indexed
// [true][predicted].
type Evaluation struct {
	Accuracy    float64         `json:"accuracy"`
	Classes     [2]ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics    `json:"macro_avg"`
	WeightedAvg ClassMetrics    `json:"weighted_avg"`
	Confusion   [2][2]int       `json:"confusion"`
	Support     int             `json:"support"`
}

// Evaluate scores c on the test rows. Undefined ratios (no predicted or no
// true members of a class) are reported as 0.
func Evaluate(c Classifier, x [][]float64, y []int) (Evaluation, error) {
	if len(x) == 0 || len(x) != len(y) {
		return Evaluation{}, fmt.Errorf("evaluation needs matching non-empty rows and labels, got %d rows and %d labels", len(x), len(y))
	}

	var ev Evaluation
	pred := PredictAll(c, x)
	for i := range y {
		ev.Confusion[y[i]][pred[i]]++
	}
	ev.Support = len(y)
	ev.Accuracy = Accuracy(y, pred)

	for class := 0; class < 2; class++ {
		tp := ev.Confusion[class][class]
		predicted := ev.Confusion[0][class] + ev.Confusion[1][class]
		actual := ev.Confusion[class][0] + ev.Confusion[class][1]

		m := ClassMetrics{Name: ClassNames[class], Support: actual}
		m.Precision = ratio(tp, predicted)
		m.Recall = ratio(tp, actual)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.Classes[class] = m
	}

	ev.MacroAvg = ClassMetrics{Name: "macro avg", Support: ev.Support}
	ev.WeightedAvg = ClassMetrics{Name: "weighted avg", Support: ev.Support}
	for _, m := range ev.Classes {
		ev.MacroAvg.Precision += m.Precision / 2
		ev.MacroAvg.Recall += m.Recall / 2
		ev.MacroAvg.F1 += m.F1 / 2

		w := float64(m.Support) / float64(ev.Support)
		ev.WeightedAvg.Precision += m.Precision * w
		ev.WeightedAvg.Recall += m.Recall * w
		ev.WeightedAvg.F1 += m.F1 * w
	}
	return ev, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
