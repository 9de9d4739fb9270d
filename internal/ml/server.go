package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Transformer maps raw feature rows into the space the model was fit in.
// dataset.StandardScaler implements it.
type Transformer interface {
	Transform(x [][]float64) ([][]float64, error)
}

// ModelServer answers occupancy predictions for raw feature vectors over
// HTTP.
type ModelServer struct {
	model       Classifier
	scaler      Transformer
	names       []string
	version     string
	server      *http.Server
	predictions atomic.Int64
	now         func() time.Time
}

// PredictionRequest carries one household's unscaled feature values keyed
// by feature name. Every feature must be present.
type PredictionRequest struct {
	Features  map[string]float64 `json:"features"`
	RequestID string             `json:"request_id,omitempty"`
}

type PredictionResponse struct {
	Class        string     `json:"class"`
	Label        int        `json:"label"`
	Probability  [2]float64 `json:"probability"`
	RequestID    string     `json:"request_id,omitempty"`
	ModelVersion string     `json:"model_version"`
	Latency      float64    `json:"latency_ms"`
	Timestamp    time.Time  `json:"timestamp"`
}

func NewModelServer(model Classifier, scaler Transformer, names []string, version string, port int) *ModelServer {
	ms := &ModelServer{
		model:   model,
		scaler:  scaler,
		names:   names,
		version: version,
		now:     time.Now,
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return ms
}

// Handler exposes /predict, /health and /model/info.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	return mux
}

// Start blocks serving requests until Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Str("version", ms.version).Msg("starting model server")
	if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// row orders the request values by schema and rejects unknown names.
func (ms *ModelServer) row(values map[string]float64) ([]float64, error) {
	if len(values) != len(ms.names) {
		for name := range values {
			if !slices.Contains(ms.names, name) {
				return nil, fmt.Errorf("unknown feature %q", name)
			}
		}
	}
	row := make([]float64, len(ms.names))
	for i, name := range ms.names {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing feature %q", name)
		}
		row[i] = v
	}
	return row, nil
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Features) == 0 {
		http.Error(w, "features cannot be empty", http.StatusBadRequest)
		return
	}

	row, err := ms.row(req.Features)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scaled, err := ms.scaler.Transform([][]float64{row})
	if err != nil {
		log.Error().Err(err).Msg("feature scaling failed")
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), http.StatusInternalServerError)
		return
	}

	proba := ms.model.PredictProba(scaled[0])
	label := ms.model.Predict(scaled[0])
	ms.predictions.Add(1)

	resp := PredictionResponse{
		Class:        ClassNames[label],
		Label:        label,
		Probability:  proba,
		RequestID:    req.RequestID,
		ModelVersion: ms.version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:    ms.now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode prediction")
	}
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy":       ms.model != nil,
		"model_version": ms.version,
	})
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":     ms.version,
		"features":    ms.names,
		"classes":     ClassNames,
		"predictions": ms.predictions.Load(),
	}
	if f, ok := ms.model.(*RandomForest); ok {
		info["params"] = f.Params.Values()
		info["max_tree_depth"] = f.MaxTreeDepth()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
