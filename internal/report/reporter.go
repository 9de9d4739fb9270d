// Package report renders a pipeline run as text, CSV and JSON files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"occupancy-classifier/internal/ml"
	"occupancy-classifier/internal/pipeline"
)

// Reporter writes the output of one run
type Reporter struct {
	report     *pipeline.Report
	outputPath string
	now        func() time.Time
}

func NewReporter(report *pipeline.Report, outputPath string) *Reporter {
	return &Reporter{
		report:     report,
		outputPath: outputPath,
		now:        time.Now,
	}
}

// GenerateReport writes summary.txt, classification.csv,
// feature_importance.csv, candidates.csv and report.json.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateClassification(); err != nil {
		return err
	}
	if err := r.generateImportance(); err != nil {
		return err
	}
	if err := r.generateCandidates(); err != nil {
		return err
	}
	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := r.PrintSummary(file); err != nil {
		return err
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return file.Close()
}

// PrintSummary writes the human-readable report to w.
func (r *Reporter) PrintSummary(w io.Writer) error {
	rep := r.report
	ev := rep.Evaluation
	ew := &errWriter{w: w}

	ew.printf("OCCUPANCY CLASSIFIER REPORT\n")
	ew.printf("===========================\n")
	ew.printf("Run: %s\n\n", rep.RunID)

	ew.printf("DATASET\n")
	ew.printf("-------\n")
	ew.printf("Households: %d (single %d, multiple %d)\n", rep.Households, rep.OriginalClasses[0], rep.OriginalClasses[1])
	ew.printf("Motion events: %d\n", rep.Events)
	ew.printf("Synthetic samples: %d\n", rep.SyntheticSamples)
	ew.printf("Train / test rows: %d / %d\n\n", rep.TrainSize, rep.TestSize)

	ew.printf("MODEL SELECTION\n")
	ew.printf("---------------\n")
	ew.printf("Best parameters: %s\n", rep.Params)
	ew.printf("Cross-validation score: %.4f (%d folds)\n", rep.CVScore, rep.Folds)
	ew.printf("Candidates evaluated: %d, failed: %d\n\n", len(rep.Candidates), failedCandidates(rep.Candidates))

	ew.printf("EVALUATION\n")
	ew.printf("----------\n")
	ew.printf("Accuracy: %.2f (majority baseline %.2f)\n\n", ev.Accuracy, rep.BaselineAccuracy)
	ew.printf("%-14s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range ev.Classes {
		writeClassRow(ew, m)
	}
	ew.printf("\n")
	writeClassRow(ew, ev.MacroAvg)
	writeClassRow(ew, ev.WeightedAvg)

	ew.printf("\nConfusion matrix (rows true, columns predicted):\n")
	ew.printf("%-14s %9s %9s\n", "", ml.ClassNames[0], ml.ClassNames[1])
	for i, row := range ev.Confusion {
		ew.printf("%-14s %9d %9d\n", ml.ClassNames[i], row[0], row[1])
	}

	ew.printf("\nFEATURE IMPORTANCE\n")
	ew.printf("------------------\n")
	ew.printf("Source: %s, permutation baseline accuracy %.2f\n", rep.ImportanceSource, rep.ImportanceBase)
	for _, f := range rep.Importance {
		ew.printf("%2d. %-20s %.4f  (permutation %+.4f)\n", f.Rank, f.Name, f.ImportanceScore, f.PermutationScore)
	}

	if drifted := rep.DriftedFeatures(); len(drifted) > 0 {
		ew.printf("\nSPLIT DRIFT\n")
		ew.printf("-----------\n")
		for _, a := range drifted {
			ew.printf("%-20s %-28s %.4f > %.2f (%s)\n", a.FeatureName, a.Method, a.DriftScore, a.Threshold, a.Severity)
		}
	}
	return ew.err
}

func writeClassRow(ew *errWriter, m ml.ClassMetrics) {
	ew.printf("%-14s %9.2f %9.2f %9.2f %9d\n", m.Name, m.Precision, m.Recall, m.F1, m.Support)
}

func (r *Reporter) generateClassification() error {
	ev := r.report.Evaluation
	rows := [][]string{{"class", "precision", "recall", "f1", "support"}}
	for _, m := range []ml.ClassMetrics{ev.Classes[0], ev.Classes[1], ev.MacroAvg, ev.WeightedAvg} {
		rows = append(rows, []string{
			m.Name,
			formatFloat(m.Precision),
			formatFloat(m.Recall),
			formatFloat(m.F1),
			strconv.Itoa(m.Support),
		})
	}
	rows = append(rows, []string{"accuracy", "", "", formatFloat(ev.Accuracy), strconv.Itoa(ev.Support)})
	return r.writeCSV("classification.csv", rows)
}

func (r *Reporter) generateImportance() error {
	rows := [][]string{{"rank", "feature", "importance", "permutation_importance"}}
	for _, f := range r.report.Importance {
		rows = append(rows, []string{
			strconv.Itoa(f.Rank),
			f.Name,
			formatFloat(f.ImportanceScore),
			formatFloat(f.PermutationScore),
		})
	}
	return r.writeCSV("feature_importance.csv", rows)
}

// generateCandidates lists every searched configuration, best first.
func (r *Reporter) generateCandidates() error {
	candidates := append([]ml.CandidateResult(nil), r.report.Candidates...)
	sort.SliceStable(candidates, func(i, j int) bool {
		if (candidates[i].Err == nil) != (candidates[j].Err == nil) {
			return candidates[i].Err == nil
		}
		return candidates[i].MeanScore > candidates[j].MeanScore
	})

	rows := [][]string{{"order", "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "mean_score", "std_score", "duration_ms", "error"}}
	for _, c := range candidates {
		depth := "none"
		if c.Params.MaxDepth > 0 {
			depth = strconv.Itoa(c.Params.MaxDepth)
		}
		errMsg := ""
		if c.Err != nil {
			errMsg = c.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Order),
			strconv.Itoa(c.Params.NEstimators),
			depth,
			strconv.Itoa(c.Params.MinSamplesSplit),
			strconv.Itoa(c.Params.MinSamplesLeaf),
			formatFloat(c.MeanScore),
			formatFloat(c.StdScore),
			strconv.FormatInt(c.Duration.Milliseconds(), 10),
			errMsg,
		})
	}
	return r.writeCSV("candidates.csv", rows)
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "report.json")

	rep := r.report
	out := map[string]interface{}{
		"summary": map[string]interface{}{
			"households":        rep.Households,
			"events":            rep.Events,
			"original_classes":  rep.OriginalClasses,
			"synthetic_samples": rep.SyntheticSamples,
			"train_size":        rep.TrainSize,
			"test_size":         rep.TestSize,
			"cv_score":          rep.CVScore,
			"baseline_accuracy": rep.BaselineAccuracy,
			"folds":             rep.Folds,
		},
		"run_id":            rep.RunID,
		"params":            rep.Params.Values(),
		"evaluation":        rep.Evaluation,
		"importance":        rep.Importance,
		"importance_source": rep.ImportanceSource,
		"scaler":            rep.Scaler,
		"split_drift":       rep.SplitDrift,
		"generated_at":      r.now(),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(r.outputPath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	log.Info().Str("file", path).Msg("CSV report generated")
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func failedCandidates(candidates []ml.CandidateResult) int {
	n := 0
	for _, c := range candidates {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// errWriter keeps the first write error so formatting code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
