// Package simulate builds synthetic trip tables with known bad values.
package simulate

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/pkg/logger"
)

// Defaults for the synthetic fleet.
const (
	DefaultSamples = 500
	DefaultSeed    = 42
)

// Distribution parameters of normal trips (central Paris).
const (
	durationMean  = 30.0
	durationStd   = 5.0
	speedMean     = 40.0
	speedStd      = 8.0
	latitudeMean  = 48.8566
	longitudeMean = 2.3522
	gpsStd        = 0.01
)

// Injection describes one deliberately corrupted value.
type Injection struct {
	Index  int
	Column model.Column
	// Value is the injected reading; nil makes the value absent.
	Value *float64
}

// DefaultInjections returns the documented set of bad values: duration
// outliers at 10/50/200, speed outliers at 20/70/300, GPS outliers at 5/100,
// missing durations at 15/80 and a missing speed at 25.
func DefaultInjections() []Injection {
	return []Injection{
		{Index: 10, Column: model.ColumnTripDuration, Value: model.Float(120)},
		{Index: 50, Column: model.ColumnTripDuration, Value: model.Float(1)},
		{Index: 200, Column: model.ColumnTripDuration, Value: model.Float(90)},
		{Index: 20, Column: model.ColumnSpeed, Value: model.Float(200)},
		{Index: 70, Column: model.ColumnSpeed, Value: model.Float(0)},
		{Index: 300, Column: model.ColumnSpeed, Value: model.Float(-10)},
		{Index: 5, Column: model.ColumnLatitude, Value: model.Float(50.0)},
		{Index: 100, Column: model.ColumnLatitude, Value: model.Float(10.0)},
		{Index: 5, Column: model.ColumnLongitude, Value: model.Float(5.0)},
		{Index: 100, Column: model.ColumnLongitude, Value: model.Float(100.0)},
		{Index: 15, Column: model.ColumnTripDuration},
		{Index: 80, Column: model.ColumnTripDuration},
		{Index: 25, Column: model.ColumnSpeed},
	}
}

// Config holds generator settings.
type Config struct {
	Samples    int
	Seed       int64
	Injections []Injection
}

// Option applies a configuration option to Config.
type Option func(*Config)

// WithSamples sets the number of records.
func WithSamples(n int) Option {
	return func(c *Config) {
		c.Samples = n
	}
}

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithInjections replaces the default injections.
func WithInjections(inj []Injection) Option {
	return func(c *Config) {
		c.Injections = inj
	}
}

// Generate draws a table of normally distributed trips and then applies the
// injections. Injections past the end of the table are skipped.
func Generate(ctx context.Context, opts ...Option) (model.Table, error) {
	cfg := Config{
		Samples:    DefaultSamples,
		Seed:       DefaultSeed,
		Injections: DefaultInjections(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Samples < 0 {
		return nil, fmt.Errorf("invalid sample count %d", cfg.Samples)
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic seed for reproducible fixtures
	normal := func(mean, std float64) float64 { return mean + std*rng.NormFloat64() }

	// Draw column by column so each column's stream is independent of the
	// others' length.
	table := make(model.Table, cfg.Samples)
	for i := range table {
		table[i].TripDurationMin = model.Float(normal(durationMean, durationStd))
	}
	for i := range table {
		table[i].SpeedKmh = model.Float(normal(speedMean, speedStd))
	}
	for i := range table {
		table[i].Latitude = normal(latitudeMean, gpsStd)
	}
	for i := range table {
		table[i].Longitude = normal(longitudeMean, gpsStd)
	}

	skipped := 0
	for _, inj := range cfg.Injections {
		if inj.Index < 0 || inj.Index >= len(table) {
			skipped++
			continue
		}
		apply(&table[inj.Index], inj)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during generation: %w", err)
	}
	logger.Get().Debug(ctx, "generated synthetic trips",
		logger.Int("records", len(table)),
		logger.Int("injections", len(cfg.Injections)-skipped),
		logger.Int("skipped", skipped))
	return table, nil
}

func apply(r *model.Record, inj Injection) {
	switch inj.Column {
	case model.ColumnTripDuration:
		r.TripDurationMin = copyFloat(inj.Value)
	case model.ColumnSpeed:
		r.SpeedKmh = copyFloat(inj.Value)
	case model.ColumnLatitude:
		if inj.Value != nil {
			r.Latitude = *inj.Value
		}
	case model.ColumnLongitude:
		if inj.Value != nil {
			r.Longitude = *inj.Value
		}
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return model.Float(*v)
}
