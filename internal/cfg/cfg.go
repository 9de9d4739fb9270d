package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"occupancy-classifier/internal/common"
	"occupancy-classifier/internal/features"
	"occupancy-classifier/internal/ml"
)

type Settings struct {
	Source             string
	DataPath           string
	SourceURL          string
	HTTPTimeout        time.Duration
	OutputDir          string
	ModelsDir          string
	Seed               int64
	TestRatio          float64
	Neighbors          int
	Folds              int
	Iterations         int
	Workers            int // 0 uses every CPU
	Scoring            string
	BucketConvention   string
	Timezone           string
	PermutationRepeats int
	MetricsPort        int // 0 disables the metrics endpoint
	ServePort          int // 0 disables the prediction server
	Grid               ml.ParamGrid
}

type ConfigFile struct {
	Source struct {
		Kind    string `yaml:"kind"`
		Path    string `yaml:"path"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"source"`

	Pipeline struct {
		Seed             *int64  `yaml:"seed"`
		TestRatio        float64 `yaml:"testRatio"`
		Neighbors        int     `yaml:"neighbors"`
		BucketConvention string  `yaml:"bucketConvention"`
		Timezone         string  `yaml:"timezone"`
	} `yaml:"pipeline"`

	Search struct {
		Folds              int          `yaml:"folds"`
		Iterations         int          `yaml:"iterations"`
		Workers            int          `yaml:"workers"`
		Scoring            string       `yaml:"scoring"`
		PermutationRepeats int          `yaml:"permutationRepeats"`
		Grid               ml.ParamGrid `yaml:"grid"`
	} `yaml:"search"`

	Output struct {
		Dir       string `yaml:"dir"`
		ModelsDir string `yaml:"modelsDir"`
	} `yaml:"output"`

	System struct {
		MetricsPort int `yaml:"metricsPort"`
		ServePort   int `yaml:"servePort"`
	} `yaml:"system"`
}

// Load reads an optional .env file, then the YAML file named by
// CONFIG_FILE if set, and finally lets environment variables override.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := defaultHTTPTimeout()
	if config.Source.Timeout != "" {
		if timeout, err = time.ParseDuration(config.Source.Timeout); err != nil {
			return Settings{}, fmt.Errorf("invalid source timeout %q: %w", config.Source.Timeout, err)
		}
	}

	seed := int64(common.DefaultSeed)
	if config.Pipeline.Seed != nil {
		seed = *config.Pipeline.Seed
	}

	settings := Settings{
		Source:             getEnvOrDefault(common.EnvSource, orDefault(config.Source.Kind, common.DefaultSource)),
		DataPath:           getEnvOrDefault(common.EnvDataPath, config.Source.Path),
		SourceURL:          getEnvOrDefault(common.EnvSourceURL, config.Source.URL),
		HTTPTimeout:        getDurationOrDefault(common.EnvHTTPTimeout, timeout),
		OutputDir:          getEnvOrDefault(common.EnvOutputDir, orDefault(config.Output.Dir, common.DefaultOutputDir)),
		ModelsDir:          getEnvOrDefault(common.EnvModelsDir, orDefault(config.Output.ModelsDir, common.DefaultModelsDir)),
		Seed:               getInt64OrDefault(common.EnvSeed, seed),
		TestRatio:          getFloatFromEnvOrConfig(common.EnvTestRatio, config.Pipeline.TestRatio, common.DefaultTestRatio),
		Neighbors:          getIntFromEnvOrConfig(common.EnvNeighbors, config.Pipeline.Neighbors, common.DefaultNeighbors),
		Folds:              getIntFromEnvOrConfig(common.EnvFolds, config.Search.Folds, common.DefaultFolds),
		Iterations:         getIntFromEnvOrConfig(common.EnvIterations, config.Search.Iterations, common.DefaultIterations),
		Workers:            getIntFromEnvOrConfig(common.EnvWorkers, config.Search.Workers, 0),
		Scoring:            getEnvOrDefault(common.EnvScoring, orDefault(config.Search.Scoring, common.DefaultScoring)),
		BucketConvention:   getEnvOrDefault(common.EnvBucketConvention, orDefault(config.Pipeline.BucketConvention, common.DefaultBucketConvention)),
		Timezone:           getEnvOrDefault(common.EnvTimezone, orDefault(config.Pipeline.Timezone, common.DefaultTimezone)),
		PermutationRepeats: getIntFromEnvOrConfig(common.EnvPermutationRepeats, config.Search.PermutationRepeats, common.DefaultPermutationRepeats),
		MetricsPort:        getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, 0),
		ServePort:          getIntFromEnvOrConfig(common.EnvServePort, config.System.ServePort, 0),
		Grid:               mergeGrid(config.Search.Grid),
	}

	if settings.DataPath == "" && settings.Source != common.SourceHTTP {
		settings.DataPath = common.DefaultDataPath
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Source:             getEnvOrDefault(common.EnvSource, common.DefaultSource),
		DataPath:           os.Getenv(common.EnvDataPath),
		SourceURL:          os.Getenv(common.EnvSourceURL),
		HTTPTimeout:        getDurationOrDefault(common.EnvHTTPTimeout, defaultHTTPTimeout()),
		OutputDir:          getEnvOrDefault(common.EnvOutputDir, common.DefaultOutputDir),
		ModelsDir:          getEnvOrDefault(common.EnvModelsDir, common.DefaultModelsDir),
		Seed:               getInt64OrDefault(common.EnvSeed, common.DefaultSeed),
		TestRatio:          getFloatOrDefault(common.EnvTestRatio, common.DefaultTestRatio),
		Neighbors:          getIntOrDefault(common.EnvNeighbors, common.DefaultNeighbors),
		Folds:              getIntOrDefault(common.EnvFolds, common.DefaultFolds),
		Iterations:         getIntOrDefault(common.EnvIterations, common.DefaultIterations),
		Workers:            getIntOrDefault(common.EnvWorkers, 0),
		Scoring:            getEnvOrDefault(common.EnvScoring, common.DefaultScoring),
		BucketConvention:   getEnvOrDefault(common.EnvBucketConvention, common.DefaultBucketConvention),
		Timezone:           getEnvOrDefault(common.EnvTimezone, common.DefaultTimezone),
		PermutationRepeats: getIntOrDefault(common.EnvPermutationRepeats, common.DefaultPermutationRepeats),
		MetricsPort:        getIntOrDefault(common.EnvMetricsPort, 0),
		ServePort:          getIntOrDefault(common.EnvServePort, 0),
		Grid:               ml.DefaultGrid(),
	}

	if settings.DataPath == "" && settings.Source != common.SourceHTTP {
		settings.DataPath = common.DefaultDataPath
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultHTTPTimeout() time.Duration {
	d, _ := time.ParseDuration(common.DefaultHTTPTimeout)
	return d
}

// mergeGrid fills hyperparameters missing from the file with the defaults.
func mergeGrid(g ml.ParamGrid) ml.ParamGrid {
	def := ml.DefaultGrid()
	if len(g.NEstimators) == 0 {
		g.NEstimators = def.NEstimators
	}
	if len(g.MaxDepth) == 0 {
		g.MaxDepth = def.MaxDepth
	}
	if len(g.MinSamplesSplit) == 0 {
		g.MinSamplesSplit = def.MinSamplesSplit
	}
	if len(g.MinSamplesLeaf) == 0 {
		g.MinSamplesLeaf = def.MinSamplesLeaf
	}
	return g
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	// Validate data source
	switch settings.Source {
	case common.SourceSQLite, common.SourceBoltDB, common.SourceCSV:
		if settings.DataPath == "" {
			return errors.New(common.ErrMsgDataPathRequired)
		}
	case common.SourceHTTP:
		if settings.SourceURL == "" {
			return errors.New(common.ErrMsgSourceURLRequired)
		}
		if !strings.HasPrefix(settings.SourceURL, "http://") && !strings.HasPrefix(settings.SourceURL, "https://") {
			return fmt.Errorf("source URL must be http or https, got %q", settings.SourceURL)
		}
	default:
		return fmt.Errorf("unknown data source %q", settings.Source)
	}
	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", settings.HTTPTimeout)
	}

	// Validate output locations
	if settings.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	// Validate pipeline parameters
	if settings.TestRatio < common.MinTestRatio || settings.TestRatio > common.MaxTestRatio {
		return fmt.Errorf("test ratio must be between %.2f and %.2f, got %f", common.MinTestRatio, common.MaxTestRatio, settings.TestRatio)
	}
	if settings.Neighbors < 1 || settings.Neighbors > common.MaxNeighbors {
		return fmt.Errorf("SMOTE neighbours must be between 1 and %d, got %d", common.MaxNeighbors, settings.Neighbors)
	}
	if _, err := features.ParseBucketConvention(settings.BucketConvention); err != nil {
		return err
	}
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	// Validate search parameters
	if settings.Folds < common.MinFolds || settings.Folds > common.MaxFolds {
		return fmt.Errorf("CV folds must be between %d and %d, got %d", common.MinFolds, common.MaxFolds, settings.Folds)
	}
	if settings.Iterations < 1 || settings.Iterations > common.MaxIterations {
		return fmt.Errorf("search iterations must be between 1 and %d, got %d", common.MaxIterations, settings.Iterations)
	}
	if settings.Workers < 0 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("search workers must be between 0 and %d, got %d", common.MaxWorkers, settings.Workers)
	}
	if _, err := ml.ParseScoring(settings.Scoring); err != nil {
		return err
	}
	if settings.PermutationRepeats < 1 || settings.PermutationRepeats > common.MaxPermutationRepeats {
		return fmt.Errorf("permutation repeats must be between 1 and %d, got %d", common.MaxPermutationRepeats, settings.PermutationRepeats)
	}
	if settings.Grid.Size() == 0 {
		return fmt.Errorf("hyperparameter grid is empty")
	}

	// Validate metrics port
	if settings.MetricsPort != 0 && (settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort) {
		return fmt.Errorf("metrics port must be 0 or between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}
	if settings.ServePort != 0 && (settings.ServePort < common.MinMetricsPort || settings.ServePort > common.MaxMetricsPort) {
		return fmt.Errorf("serve port must be 0 or between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.ServePort)
	}
	if settings.ServePort != 0 && settings.ServePort == settings.MetricsPort {
		return fmt.Errorf("serve port %d collides with the metrics port", settings.ServePort)
	}

	return nil
}
