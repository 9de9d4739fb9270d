package common

// Data source kinds
const (
	SourceSQLite = "sqlite"
	SourceBoltDB = "boltdb"
	SourceCSV    = "csv"
	SourceHTTP   = "http"
)

// Environment variable keys
const (
	EnvConfigFile         = "CONFIG_FILE"
	EnvSource             = "OCCUPANCY_SOURCE"
	EnvDataPath           = "DATA_PATH"
	EnvSourceURL          = "SOURCE_URL"
	EnvHTTPTimeout        = "HTTP_TIMEOUT"
	EnvOutputDir          = "OUTPUT_DIR"
	EnvModelsDir          = "MODELS_DIR"
	EnvSeed               = "SEED"
	EnvTestRatio          = "TEST_RATIO"
	EnvNeighbors          = "SMOTE_NEIGHBORS"
	EnvFolds              = "CV_FOLDS"
	EnvIterations         = "SEARCH_ITERATIONS"
	EnvWorkers            = "SEARCH_WORKERS"
	EnvScoring            = "SCORING"
	EnvBucketConvention   = "BUCKET_CONVENTION"
	EnvTimezone           = "TIMEZONE"
	EnvPermutationRepeats = "PERMUTATION_REPEATS"
	EnvMetricsPort        = "METRICS_PORT"
	EnvServePort          = "SERVE_PORT"
)

// Configuration defaults
const (
	DefaultSource             = SourceSQLite
	DefaultDataPath           = "data/occupancy.db"
	DefaultHTTPTimeout        = "10s"
	DefaultOutputDir          = "results"
	DefaultModelsDir          = "models"
	DefaultSeed               = 42
	DefaultTestRatio          = 0.2
	DefaultNeighbors          = 5
	DefaultFolds              = 5
	DefaultIterations         = 20
	DefaultScoring            = "accuracy"
	DefaultBucketConvention   = "half-open"
	DefaultTimezone           = "UTC"
	DefaultPermutationRepeats = 5
)

// Common error messages
const (
	ErrMsgDataPathRequired  = "data path is required for file-based sources"
	ErrMsgSourceURLRequired = "source URL is required for the http source"
)

// Validation constants
const (
	MinTestRatio          = 0.05
	MaxTestRatio          = 0.5
	MaxNeighbors          = 50
	MinFolds              = 2
	MaxFolds              = 20
	MaxIterations         = 1000
	MaxWorkers            = 256
	MaxPermutationRepeats = 100
	MinMetricsPort        = 1024
	MaxMetricsPort        = 65535
)
