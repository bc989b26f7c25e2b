// Package report turns an analysis run into summary statistics, a
// spreadsheet workbook and a console digest.
package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	service "github.com/okian/tripqa/internal/app"
	"github.com/okian/tripqa/internal/domain/detect"
	"github.com/okian/tripqa/internal/domain/ensemble"
	"github.com/okian/tripqa/internal/domain/evaluate"
	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/domain/quality"
)

// extremeMultiplier is the IQR fence width used for extreme-value counts.
const extremeMultiplier = 1.5

// ColumnStats describes one numeric column over its present values.
type ColumnStats struct {
	Column     model.Column
	Count      int
	Missing    int
	MissingPct float64

	// Std is the sample standard deviation.
	Mean, Std           float64
	Min, Q1, Median, Q3 float64
	Max                 float64

	LowerFence, UpperFence  float64
	ExtremeLow, ExtremeHigh int
}

// DetectorStats is one detector's share of the table and its agreement
// with the ensemble decision.
type DetectorStats struct {
	Detector  model.DetectorName
	Anomalies int
	Percent   float64
	Duration  float64 // milliseconds
	Agreement evaluate.Scores
}

// Summary aggregates a run for reporting.
type Summary struct {
	RunID   string
	Records int

	Columns   []ColumnStats
	Detectors []DetectorStats

	// CommonAnomalies counts records flagged by every baseline detector
	// that ran.
	CommonAnomalies   int
	EnsembleAnomalies int
	Members           []model.DetectorName
	Threshold         int

	Warnings map[quality.Warning]int

	// Correlation is the Pearson matrix of Columns over rows where every
	// column is present. NaN where a column is constant.
	Correlation [][]float64
}

// Summarize computes the Summary of rep.
func Summarize(rep *service.Report) (*Summary, error) {
	n := len(rep.Table)
	s := &Summary{
		RunID:             rep.RunID,
		Records:           n,
		EnsembleAnomalies: rep.Ensemble.Count(),
		Members:           rep.Members,
		Threshold:         rep.Threshold,
		Warnings:          quality.Counts(rep.Warnings),
	}

	for _, c := range model.Columns() {
		s.Columns = append(s.Columns, columnStats(rep.Table, c))
	}
	s.Correlation = correlation(rep.Table)

	for _, d := range rep.Detectors {
		f, ok := rep.Flags[d]
		if !ok {
			continue
		}
		agreement, err := evaluate.Compare(f, rep.Ensemble)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d, err)
		}
		s.Detectors = append(s.Detectors, DetectorStats{
			Detector:  d,
			Anomalies: f.Count(),
			Percent:   percent(f.Count(), n),
			Duration:  float64(rep.Durations[d].Microseconds()) / 1e3,
			Agreement: agreement,
		})
	}

	var baseline []model.DetectorName
	for _, d := range model.BaselineDetectors() {
		if _, ok := rep.Flags[d]; ok {
			baseline = append(baseline, d)
		}
	}
	if len(baseline) > 0 {
		common, err := ensemble.Intersection(rep.Flags, baseline)
		if err != nil {
			return nil, err
		}
		s.CommonAnomalies = common.Count()
	}
	return s, nil
}

func columnStats(t model.Table, c model.Column) ColumnStats {
	cs := ColumnStats{Column: c}
	values := make([]float64, 0, len(t))
	for _, r := range t {
		if v, ok := c.Value(r); ok && !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	cs.Count = len(values)
	cs.Missing = len(t) - len(values)
	cs.MissingPct = percent(cs.Missing, len(t))
	if len(values) == 0 {
		nan := math.NaN()
		cs.Mean, cs.Std, cs.Min, cs.Q1, cs.Median, cs.Q3, cs.Max = nan, nan, nan, nan, nan, nan, nan
		cs.LowerFence, cs.UpperFence = nan, nan
		return cs
	}

	cs.Mean, cs.Std = stat.MeanStdDev(values, nil)
	cs.Min, cs.Max = floats.Min(values), floats.Max(values)
	cs.Q1 = detect.Quantile(values, 0.25)
	cs.Median = detect.Quantile(values, 0.5)
	cs.Q3 = detect.Quantile(values, 0.75)

	cs.LowerFence, cs.UpperFence = detect.Fences(values, extremeMultiplier)
	for _, v := range values {
		switch {
		case v < cs.LowerFence:
			cs.ExtremeLow++
		case v > cs.UpperFence:
			cs.ExtremeHigh++
		}
	}
	return cs
}

func correlation(t model.Table) [][]float64 {
	cols := model.Columns()
	data := make([][]float64, len(cols))
	for _, r := range t {
		row := make([]float64, len(cols))
		complete := true
		for j, c := range cols {
			v, ok := c.Value(r)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			continue
		}
		for j := range cols {
			data[j] = append(data[j], row[j])
		}
	}

	out := make([][]float64, len(cols))
	for i := range cols {
		out[i] = make([]float64, len(cols))
		for j := range cols {
			if len(data[i]) < 2 {
				out[i][j] = math.NaN()
				continue
			}
			r := stat.Correlation(data[i], data[j], nil)
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			out[i][j] = r
		}
	}
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
