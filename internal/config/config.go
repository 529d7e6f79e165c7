// Package config loads trainer and server settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/disaster-prediction/internal/forest"
	"github.com/couchcryptid/disaster-prediction/internal/model"
)

// Trainer holds the training job settings.
type Trainer struct {
	DisasterDataPath string
	WeatherDataPath  string
	ModelDir         string
	MaxDistanceKm    float64
	BundleRetain     int
	PushgatewayURL   string
	LogLevel         string
	LogFormat        string

	Models model.TrainerConfig
}

// Server holds the prediction server settings.
type Server struct {
	ModelDir        string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// History recording.
	HistoryDBPath   string
	KafkaBrokers    []string
	KafkaTopic      string
	RecorderWorkers int
	RecorderBuffer  int

	// Mapbox reverse geocoding of history records.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// LoadTrainer reads training configuration, applying defaults where unset.
func LoadTrainer() (*Trainer, error) {
	cfg := &Trainer{
		DisasterDataPath: os.Getenv("DISASTER_DATA_PATH"),
		WeatherDataPath:  os.Getenv("WEATHER_DATA_PATH"),
		ModelDir:         sharedcfg.EnvOrDefault("MODEL_DIR", "models"),
		PushgatewayURL:   os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.DisasterDataPath == "" {
		return nil, errors.New("DISASTER_DATA_PATH is required")
	}
	if cfg.WeatherDataPath == "" {
		return nil, errors.New("WEATHER_DATA_PATH is required")
	}

	var err error
	if cfg.MaxDistanceKm, err = positiveFloat("MATCH_MAX_DISTANCE_KM", 100); err != nil {
		return nil, err
	}
	if cfg.BundleRetain, err = positiveInt("BUNDLE_RETAIN", model.DefaultRetain); err != nil {
		return nil, err
	}
	seed, err := parseSeed()
	if err != nil {
		return nil, err
	}

	defaults := model.DefaultTrainerConfig()
	cfg.Models.ClassifierBalanced = defaults.ClassifierBalanced
	if v := os.Getenv("CLASSIFIER_BALANCED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLASSIFIER_BALANCED: %q", v)
		}
		cfg.Models.ClassifierBalanced = b
	}
	if cfg.Models.Classifier, err = forestParams("CLASSIFIER", defaults.Classifier, seed); err != nil {
		return nil, err
	}
	if cfg.Models.Deaths, err = forestParams("DEATHS", defaults.Deaths, seed); err != nil {
		return nil, err
	}
	if cfg.Models.InfraLoss, err = forestParams("INFRA_LOSS", defaults.InfraLoss, seed); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadServer reads server configuration, applying defaults where unset.
func LoadServer() (*Server, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err := time.ParseDuration(mapboxTimeoutStr)
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Server{
		ModelDir:        sharedcfg.EnvOrDefault("MODEL_DIR", "models"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		HistoryDBPath: os.Getenv("HISTORY_DB_PATH"),
		KafkaBrokers:  brokers,
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_PREDICTION_TOPIC", "disaster-predictions"),

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,
	}

	if cfg.RecorderWorkers, err = positiveInt("RECORDER_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.RecorderBuffer, err = positiveInt("RECORDER_BUFFER", 100); err != nil {
		return nil, err
	}
	cfg.MapboxCacheSize = parseMapboxCacheSize()

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_PREDICTION_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// HistoryEnabled reports whether any history sink is configured.
func (c *Server) HistoryEnabled() bool {
	return c.HistoryDBPath != "" || len(c.KafkaBrokers) > 0
}

// forestParams overlays <prefix>_ESTIMATORS, _MAX_DEPTH, _MIN_SAMPLES_SPLIT,
// _MIN_SAMPLES_LEAF, and _JOBS on defaults.
func forestParams(prefix string, defaults forest.Params, seed uint64) (forest.Params, error) {
	p := defaults
	p.Seed = seed

	fields := []struct {
		suffix string
		dst    *int
		min    int
	}{
		{"ESTIMATORS", &p.Estimators, 1},
		{"MAX_DEPTH", &p.MaxDepth, 0},
		{"MIN_SAMPLES_SPLIT", &p.MinSamplesSplit, 2},
		{"MIN_SAMPLES_LEAF", &p.MinSamplesLeaf, 1},
		{"JOBS", &p.Jobs, 0},
	}
	for _, f := range fields {
		key := prefix + "_" + f.suffix
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < f.min {
			return forest.Params{}, fmt.Errorf("invalid %s: must be an integer >= %d", key, f.min)
		}
		*f.dst = n
	}
	return p, nil
}

func parseSeed() (uint64, error) {
	v := sharedcfg.EnvOrDefault("RANDOM_SEED", "42")
	seed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid RANDOM_SEED: %q", v)
	}
	return seed, nil
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
