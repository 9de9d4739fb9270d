package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"occupancy-classifier/internal/cfg"
	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/metrics"
	"occupancy-classifier/internal/ml"
	"occupancy-classifier/internal/pipeline"
	"occupancy-classifier/internal/report"
	"occupancy-classifier/internal/source"
)

func main() {
	var (
		sourceKind = flag.String("source", "", "Data source: sqlite, boltdb, csv, http (overrides config)")
		dataPath   = flag.String("data", "", "Path to the SQLite file, BoltDB file or CSV directory (overrides config)")
		sourceURL  = flag.String("url", "", "Base URL of the HTTP source (overrides config)")
		outputPath = flag.String("output", "", "Output directory for reports (overrides config)")
		seed       = flag.Int64("seed", -1, "Random seed (overrides config when >= 0)")
		workers    = flag.Int("workers", -1, "Concurrent search candidates, 0 for all CPUs (overrides config when >= 0)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		quiet      = flag.Bool("quiet", false, "Do not print the summary to stdout")
		linger     = flag.Duration("linger", 0, "Keep serving metrics for this long after the run")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	config, err = overrides{
		source:     *sourceKind,
		dataPath:   *dataPath,
		sourceURL:  *sourceURL,
		outputPath: *outputPath,
		seed:       *seed,
		workers:    *workers,
	}.apply(config)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid command line overrides")
	}

	opts, err := config.PipelineOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pipeline options")
	}
	opts.ImportancePath = filepath.Join(config.OutputDir, "feature_importance.json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)
	if config.MetricsPort != 0 {
		startMetricsServer(ctx, config.MetricsPort, registry)
	}

	trained, err := run(ctx, config, opts, metrics.NewWrapper(m), *quiet)
	if err != nil {
		log.Fatal().Err(err).Float64("failure_rate", m.FailureRate()).Msg("pipeline failed")
	}

	if config.ServePort != 0 {
		if err := serve(ctx, trained, config.ServePort); err != nil {
			log.Fatal().Err(err).Msg("model server failed")
		}
		return
	}

	if config.MetricsPort != 0 && *linger > 0 {
		log.Info().Dur("linger", *linger).Msg("Serving metrics until linger expires")
		select {
		case <-time.After(*linger):
		case <-ctx.Done():
		}
	}
}

// overrides are the command line values that take precedence over config.
// Empty strings and negative numbers leave the config value in place.
type overrides struct {
	source     string
	dataPath   string
	sourceURL  string
	outputPath string
	seed       int64
	workers    int
}

// apply returns config with the overrides set, validated again.
func (o overrides) apply(config cfg.Settings) (cfg.Settings, error) {
	if o.source != "" {
		config.Source = o.source
	}
	if o.dataPath != "" {
		config.DataPath = o.dataPath
	}
	if o.sourceURL != "" {
		config.SourceURL = o.sourceURL
	}
	if o.outputPath != "" {
		config.OutputDir = o.outputPath
	}
	if o.seed >= 0 {
		config.Seed = o.seed
	}
	if o.workers >= 0 {
		config.Workers = o.workers
	}
	if err := config.Validate(); err != nil {
		return cfg.Settings{}, err
	}
	return config, nil
}

// trainedModel is what a run leaves behind for serving.
type trainedModel struct {
	report  *pipeline.Report
	version string
}

func run(ctx context.Context, config cfg.Settings, opts pipeline.Options, m pipeline.Metrics, quiet bool) (*trainedModel, error) {
	rel, err := source.Load(ctx, source.Config{
		Kind:    config.Source,
		Path:    config.DataPath,
		URL:     config.SourceURL,
		Timeout: config.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	rep, err := pipeline.Run(ctx, rel.Households, rel.Motion, opts, m)
	if err != nil {
		return nil, err
	}

	reporter := report.NewReporter(rep, config.OutputDir)
	if err := reporter.GenerateReport(); err != nil {
		return nil, err
	}
	if !quiet {
		if err := reporter.PrintSummary(os.Stdout); err != nil {
			return nil, err
		}
	}

	manager, err := ml.NewModelManager(config.ModelsDir)
	if err != nil {
		return nil, err
	}
	version, err := manager.AddVersion(rep.RunID, rep.Params, rep.ModelMetrics(), rep.Importance)
	if err != nil {
		return nil, fmt.Errorf("record model version: %w", err)
	}

	if best := manager.Best(); best != nil {
		log.Info().
			Str("version", version.Version).
			Str("run_id", version.RunID).
			Str("best_version", best.Version).
			Int("versions", len(manager.ListVersions())).
			Float64("best_accuracy", best.Metrics.Accuracy).
			Msg("Model version recorded")
	}
	return &trainedModel{report: rep, version: version.Version}, nil
}

// serve answers predictions with the freshly trained model until ctx is
// done.
func serve(ctx context.Context, trained *trainedModel, port int) error {
	rep := trained.report
	server := ml.NewModelServer(rep.Model, &rep.Scaler, features.Names(), trained.version, port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown model server")
		}
	}()

	return server.Start()
}

// startMetricsServer serves /metrics and /health until ctx is done
func startMetricsServer(ctx context.Context, port int, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Int("port", port).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
