package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MetricsWrapper adapts Metrics to the recorder interface the pipeline
// package expects, so that package never imports Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) RunStarted() {
	w.m.PipelineRuns.Inc()
}

func (w *MetricsWrapper) RunFailed() {
	w.m.PipelineFailures.Inc()
}

func (w *MetricsWrapper) ObserveStage(stage string, d time.Duration) {
	w.m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (w *MetricsWrapper) SetEvents(n int) {
	w.m.EventsLoaded.Set(float64(n))
}

func (w *MetricsWrapper) SetDataset(households, synthetic, train, test int) {
	w.m.Households.Set(float64(households))
	w.m.SyntheticSamples.Set(float64(synthetic))
	w.m.TrainRows.Set(float64(train))
	w.m.TestRows.Set(float64(test))
}

func (w *MetricsWrapper) ObserveCandidate(score float64, failed bool) {
	w.m.SearchCandidates.Inc()
	if failed {
		w.m.SearchFailures.Inc()
		return
	}
	w.m.CandidateScores.Observe(score)
}

func (w *MetricsWrapper) SetScores(cvBest, accuracy, f1 float64) {
	w.m.CVBestScore.Set(cvBest)
	w.m.TestAccuracy.Set(accuracy)
	w.m.TestF1.Set(f1)
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
