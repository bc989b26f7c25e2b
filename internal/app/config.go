package service

import (
	"fmt"

	"github.com/okian/tripqa/internal/config"
	"github.com/okian/tripqa/internal/domain/detect"
	"github.com/okian/tripqa/internal/domain/model"
)

// OptionsFromConfig translates a loaded Config into service options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	cols := make([]model.Column, 0, len(cfg.Columns))
	for _, name := range cfg.Columns {
		c, err := model.ParseColumn(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		cols = append(cols, c)
	}
	policy, err := detect.ParseMissingPolicy(cfg.MissingPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	detectors, err := detectorNames(cfg.Detectors)
	if err != nil {
		return nil, err
	}
	members, err := detectorNames(cfg.EnsembleMembers)
	if err != nil {
		return nil, err
	}

	return []Option{
		WithDetectors(detectors...),
		WithEnsemble(members, cfg.EnsembleThreshold),
		WithDetectorOptions(
			detect.WithColumns(cols...),
			detect.WithMissingPolicy(policy),
			detect.WithZThreshold(cfg.ZThreshold),
			detect.WithIQRMultiplier(cfg.IQRMultiplier),
			detect.WithContamination(cfg.Contamination),
			detect.WithTrees(cfg.Trees),
			detect.WithMaxSamples(cfg.MaxSamples),
			detect.WithSeed(cfg.Seed),
			detect.WithEps(cfg.Eps),
			detect.WithMinSamples(cfg.MinSamples),
			detect.WithComponents(cfg.Components),
			detect.WithErrorPercentile(cfg.ErrorPercentile),
		),
	}, nil
}

func detectorNames(names []string) ([]model.DetectorName, error) {
	known := make(map[model.DetectorName]bool)
	for _, d := range model.AllDetectors() {
		known[d] = true
	}
	out := make([]model.DetectorName, 0, len(names))
	for _, n := range names {
		d := model.DetectorName(n)
		if !known[d] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, n)
		}
		out = append(out, d)
	}
	return out, nil
}
