package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion records one training run. Fitted trees are never persisted;
// a version keeps the configuration and scores needed to compare runs.
type ModelVersion struct {
	Version    string         `json:"version"`
	RunID      string         `json:"run_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Params     Params         `json:"params"`
	Metrics    ModelMetrics   `json:"metrics"`
	Importance []FeatureStats `json:"importance"`
	IsActive   bool           `json:"is_active"`
}

// ModelMetrics contains performance metrics for a run
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	CVScore         float64 `json:"cv_score"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	TrainingSamples int     `json:"training_samples"`
	TestSamples     int     `json:"test_samples"`
}

// ModelManager keeps the history of training runs in model_versions.json.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
	now          func() time.Time
}

func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
		now:          time.Now,
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// AddVersion records a run and makes it the active version.
func (mm *ModelManager) AddVersion(runID string, params Params, metrics ModelMetrics, importance []FeatureStats) (ModelVersion, error) {
	created := mm.now()
	version := ModelVersion{
		Version:    fmt.Sprintf("%s-%03d", created.Format("20060102-150405"), len(mm.versions)+1),
		RunID:      runID,
		CreatedAt:  created,
		Params:     params,
		Metrics:    metrics,
		Importance: importance,
	}

	mm.versions = append(mm.versions, version)

	// Newest first
	sort.SliceStable(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})

	if err := mm.ActivateVersion(version.Version); err != nil {
		return ModelVersion{}, err
	}
	return *mm.currentModel, nil
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			mm.versions[i].IsActive = true
			mm.currentModel = &mm.versions[i]
			found = true
		} else {
			mm.versions[i].IsActive = false
		}
	}

	if !found {
		return fmt.Errorf("version %s not found", version)
	}

	return mm.saveVersions()
}

// Best returns the version with the highest held-out accuracy.
func (mm *ModelManager) Best() *ModelVersion {
	var best *ModelVersion
	for i := range mm.versions {
		if best == nil || mm.versions[i].Metrics.Accuracy > best.Metrics.Accuracy {
			best = &mm.versions[i]
		}
	}
	return best
}

func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	return mm.currentModel
}

func (mm *ModelManager) ListVersions() []ModelVersion {
	return mm.versions
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			break
		}
	}

	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
