package detect

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/tripqa/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// ZScore flags a record when any selected column lies more than the
// threshold number of population standard deviations from the mean.
type ZScore struct {
	cfg settings
}

// NewZScore creates a z-score detector.
func NewZScore(opts ...Option) *ZScore {
	return &ZScore{cfg: newSettings(opts)}
}

// Name implements Detector.
func (d *ZScore) Name() model.DetectorName { return model.DetectorZScore }

// Detect implements Detector. A constant column never flags.
func (d *ZScore) Detect(ctx context.Context, t model.Table) (model.Flags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !(d.cfg.zThreshold > 0) {
		return nil, fmt.Errorf("%w: z threshold %v", ErrInvalidParameter, d.cfg.zThreshold)
	}
	m, err := Prepare(t, d.cfg.columns, d.cfg.policy)
	if err != nil {
		return nil, err
	}

	rowFlags := make([]bool, m.Len())
	for j := range m.Columns {
		col := m.Column(j)
		mean, std := stat.PopMeanStdDev(col, nil)
		if isDegenerate(mean, std) {
			continue
		}
		for i, v := range col {
			if math.Abs((v-mean)/std) > d.cfg.zThreshold {
				rowFlags[i] = true
			}
		}
	}
	return m.Scatter(rowFlags), nil
}

// IQR flags a record when any selected column falls outside
// [Q1 - k·IQR, Q3 + k·IQR].
type IQR struct {
	cfg settings
}

// NewIQR creates an interquartile-range detector.
func NewIQR(opts ...Option) *IQR {
	return &IQR{cfg: newSettings(opts)}
}

// Name implements Detector.
func (d *IQR) Name() model.DetectorName { return model.DetectorIQR }

// Detect implements Detector.
func (d *IQR) Detect(ctx context.Context, t model.Table) (model.Flags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.cfg.iqrMultiplier < 0 || math.IsNaN(d.cfg.iqrMultiplier) {
		return nil, fmt.Errorf("%w: iqr multiplier %v", ErrInvalidParameter, d.cfg.iqrMultiplier)
	}
	m, err := Prepare(t, d.cfg.columns, d.cfg.policy)
	if err != nil {
		return nil, err
	}

	rowFlags := make([]bool, m.Len())
	for j := range m.Columns {
		col := m.Column(j)
		lower, upper := Fences(col, d.cfg.iqrMultiplier)
		for i, v := range col {
			if v < lower || v > upper {
				rowFlags[i] = true
			}
		}
	}
	return m.Scatter(rowFlags), nil
}

// Fences returns the IQR outlier bounds of values.
func Fences(values []float64, multiplier float64) (lower, upper float64) {
	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - multiplier*iqr, q3 + multiplier*iqr
}
