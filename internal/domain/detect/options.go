package detect

import "github.com/okian/tripqa/internal/domain/model"

// Default detector parameters.
const (
	DefaultZThreshold      = 3.0
	DefaultIQRMultiplier   = 1.5
	DefaultContamination   = 0.1
	DefaultTrees           = 100
	DefaultMaxSamples      = 256
	DefaultSeed            = 42
	DefaultEps             = 0.5
	DefaultMinSamples      = 5
	DefaultComponents      = 2
	DefaultErrorPercentile = 95.0
)

// settings is shared by every detector; each detector reads only the
// fields it needs.
type settings struct {
	columns []model.Column
	policy  MissingPolicy

	zThreshold    float64
	iqrMultiplier float64

	contamination float64
	trees         int
	maxSamples    int
	seed          int64

	eps        float64
	minSamples int

	components int
	percentile float64
}

func defaultSettings() settings {
	return settings{
		columns:       []model.Column{model.ColumnTripDuration, model.ColumnSpeed},
		policy:        MissingZero,
		zThreshold:    DefaultZThreshold,
		iqrMultiplier: DefaultIQRMultiplier,
		contamination: DefaultContamination,
		trees:         DefaultTrees,
		maxSamples:    DefaultMaxSamples,
		seed:          DefaultSeed,
		eps:           DefaultEps,
		minSamples:    DefaultMinSamples,
		components:    DefaultComponents,
		percentile:    DefaultErrorPercentile,
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a detector.
type Option func(*settings)

// WithColumns selects the numeric columns a detector looks at.
func WithColumns(cols ...model.Column) Option {
	return func(s *settings) {
		s.columns = append([]model.Column(nil), cols...)
	}
}

// WithMissingPolicy sets how absent values are handled.
func WithMissingPolicy(p MissingPolicy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithZThreshold sets the absolute z-score above which a value is anomalous.
func WithZThreshold(v float64) Option {
	return func(s *settings) {
		s.zThreshold = v
	}
}

// WithIQRMultiplier sets the fence width in units of IQR.
func WithIQRMultiplier(v float64) Option {
	return func(s *settings) {
		s.iqrMultiplier = v
	}
}

// WithContamination sets the expected anomaly fraction for the isolation
// forest. Zero selects the fixed 0.5 score cutoff.
func WithContamination(v float64) Option {
	return func(s *settings) {
		s.contamination = v
	}
}

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(s *settings) {
		s.trees = n
	}
}

// WithMaxSamples sets the per-tree subsample size.
func WithMaxSamples(n int) Option {
	return func(s *settings) {
		s.maxSamples = n
	}
}

// WithSeed sets the random seed of randomized detectors.
func WithSeed(seed int64) Option {
	return func(s *settings) {
		s.seed = seed
	}
}

// WithEps sets the DBSCAN neighbourhood radius.
func WithEps(v float64) Option {
	return func(s *settings) {
		s.eps = v
	}
}

// WithMinSamples sets the DBSCAN core-point neighbour count.
func WithMinSamples(n int) Option {
	return func(s *settings) {
		s.minSamples = n
	}
}

// WithComponents sets the number of principal components kept.
func WithComponents(n int) Option {
	return func(s *settings) {
		s.components = n
	}
}

// WithErrorPercentile sets the reconstruction-error percentile cutoff.
func WithErrorPercentile(p float64) Option {
	return func(s *settings) {
		s.percentile = p
	}
}
