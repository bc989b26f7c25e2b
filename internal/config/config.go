// Package config defines run configuration and its loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and TRIPQA_* env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// InputPath is a trip CSV to analyse. Empty means simulate a fleet.
	InputPath string `koanf:"input_path"`

	// OutputCSV receives the annotated table.
	OutputCSV string `koanf:"output_csv" validate:"required"`

	// OutputXLSX receives the workbook report. Empty disables it.
	OutputXLSX string `koanf:"output_xlsx"`

	// MetricsTextfile receives Prometheus metrics. Empty disables it.
	MetricsTextfile string `koanf:"metrics_textfile"`

	// Samples and SimulationSeed drive the synthetic fleet.
	Samples        int   `koanf:"samples" validate:"gte=1"`
	SimulationSeed int64 `koanf:"simulation_seed"`

	// Columns are the numeric columns the detectors look at.
	Columns []string `koanf:"columns" validate:"min=1,unique,dive,oneof=trip_duration_min speed_kmh latitude longitude"`

	// MissingPolicy is zero, drop or mean.
	MissingPolicy string `koanf:"missing_policy" validate:"oneof=zero drop mean"`

	// Detectors lists the detectors to run.
	Detectors []string `koanf:"detectors" validate:"min=1,unique,dive,oneof=zscore iqr isolation_forest dbscan pca_reconstruction"`

	ZThreshold    float64 `koanf:"z_threshold" validate:"gt=0"`
	IQRMultiplier float64 `koanf:"iqr_multiplier" validate:"gte=0"`

	// Isolation forest. Contamination 0 selects the fixed 0.5 score cutoff.
	Contamination float64 `koanf:"contamination" validate:"gte=0,lte=0.5"`
	Trees         int     `koanf:"trees" validate:"gte=1"`
	MaxSamples    int     `koanf:"max_samples" validate:"gte=2"`
	Seed          int64   `koanf:"seed"`

	// DBSCAN.
	Eps        float64 `koanf:"eps" validate:"gt=0"`
	MinSamples int     `koanf:"min_samples" validate:"gte=1"`

	// PCA reconstruction.
	Components      int     `koanf:"components" validate:"gte=1"`
	ErrorPercentile float64 `koanf:"error_percentile" validate:"gte=0,lte=100"`

	// Ensemble vote: EnsembleThreshold of EnsembleMembers.
	EnsembleMembers   []string `koanf:"ensemble_members" validate:"min=1,unique,dive,oneof=zscore iqr isolation_forest dbscan pca_reconstruction"`
	EnsembleThreshold int      `koanf:"ensemble_threshold" validate:"gte=1"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		OutputCSV:         "anomalies_detected.csv",
		Samples:           500,
		SimulationSeed:    42,
		Columns:           []string{"trip_duration_min", "speed_kmh"},
		MissingPolicy:     "zero",
		Detectors:         []string{"zscore", "iqr", "isolation_forest", "dbscan", "pca_reconstruction"},
		ZThreshold:        3.0,
		IQRMultiplier:     1.5,
		Contamination:     0.1,
		Trees:             100,
		MaxSamples:        256,
		Seed:              42,
		Eps:               0.5,
		MinSamples:        5,
		Components:        2,
		ErrorPercentile:   95,
		EnsembleMembers:   []string{"zscore", "iqr", "isolation_forest"},
		EnsembleThreshold: 2,
	}
}
