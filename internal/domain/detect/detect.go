// Package detect implements independent outlier detectors over a trip table.
//
// Every detector reads the same immutable table and returns one flag per
// record. Detectors never modify the table and never see each other's output.
package detect

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/tripqa/internal/domain/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Relative spread below which a column is treated as constant.
const degenerateSpread = 1e-12

// Detector flags anomalous records in a table.
type Detector interface {
	Name() model.DetectorName
	// Detect returns one flag per record of t, in table order.
	Detect(ctx context.Context, t model.Table) (model.Flags, error)
}

// MissingPolicy decides what happens to absent (or non-finite) values
// before statistics are computed.
type MissingPolicy string

// Supported policies.
const (
	// MissingZero substitutes 0. A record with only absent values can be
	// flagged purely because of the substitution.
	MissingZero MissingPolicy = "zero"
	// MissingDrop leaves incomplete records out of the statistics; they are
	// never flagged.
	MissingDrop MissingPolicy = "drop"
	// MissingMean substitutes the mean of the column's present values.
	MissingMean MissingPolicy = "mean"
)

// ParseMissingPolicy validates a policy name.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MissingZero, MissingDrop, MissingMean:
		return p, nil
	case "":
		return MissingZero, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Matrix is the numeric view of a table after the missing-value policy.
type Matrix struct {
	// Rows holds one prepared row per usable record.
	Rows [][]float64
	// Index maps Rows[i] back to its position in the table.
	Index []int
	// Columns names the matrix columns.
	Columns []model.Column

	tableLen int
}

// Prepare selects cols from t and applies policy.
func Prepare(t model.Table, cols []model.Column, policy MissingPolicy) (*Matrix, error) {
	if len(t) == 0 {
		return nil, ErrEmptyTable
	}
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}

	fill := make([]float64, len(cols))
	for j, c := range cols {
		sum, present := 0.0, 0
		for _, r := range t {
			if v, ok := finiteValue(c, r); ok {
				sum += v
				present++
			}
		}
		if present == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
		switch policy {
		case MissingZero, MissingDrop:
		case MissingMean:
			fill[j] = sum / float64(present)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
		}
	}

	m := &Matrix{
		Rows:     make([][]float64, 0, len(t)),
		Index:    make([]int, 0, len(t)),
		Columns:  append([]model.Column(nil), cols...),
		tableLen: len(t),
	}
	for i, r := range t {
		row := make([]float64, len(cols))
		complete := true
		for j, c := range cols {
			v, ok := finiteValue(c, r)
			if !ok {
				complete = false
				v = fill[j]
			}
			row[j] = v
		}
		if !complete && policy == MissingDrop {
			continue
		}
		m.Rows = append(m.Rows, row)
		m.Index = append(m.Index, i)
	}
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("%w: no complete records", ErrEmptyTable)
	}
	return m, nil
}

// finiteValue treats NaN and ±Inf like an absent value.
func finiteValue(c model.Column, r model.Record) (float64, bool) {
	v, ok := c.Value(r)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Len returns the number of prepared rows.
func (m *Matrix) Len() int { return len(m.Rows) }

// Dims returns the number of columns.
func (m *Matrix) Dims() int { return len(m.Columns) }

// Column copies column j.
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// Scatter expands per-row flags to one flag per table record. Records
// dropped during preparation stay false.
func (m *Matrix) Scatter(rowFlags []bool) model.Flags {
	out := make(model.Flags, m.tableLen)
	for i, f := range rowFlags {
		out[m.Index[i]] = f
	}
	return out
}

// Standardize returns a copy with zero mean and unit population variance
// per column. Constant columns are only centred.
func (m *Matrix) Standardize() *Matrix {
	out := &Matrix{
		Rows:     make([][]float64, len(m.Rows)),
		Index:    m.Index,
		Columns:  m.Columns,
		tableLen: m.tableLen,
	}
	means := make([]float64, m.Dims())
	scales := make([]float64, m.Dims())
	for j := range m.Columns {
		mean, std := stat.PopMeanStdDev(m.Column(j), nil)
		means[j] = mean
		scales[j] = std
		if isDegenerate(mean, std) {
			scales[j] = 1
		}
	}
	for i, row := range m.Rows {
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - means[j]) / scales[j]
		}
		out.Rows[i] = z
	}
	return out
}

// Dense returns the rows as an n×d gonum matrix.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(m.Len(), m.Dims(), nil)
	for i, row := range m.Rows {
		d.SetRow(i, row)
	}
	return d
}

func isDegenerate(mean, std float64) bool {
	return math.IsNaN(std) || std <= degenerateSpread*math.Max(1, math.Abs(mean))
}

// quantile returns the q-quantile (0..1) of values using linear
// interpolation between closest ranks, the numpy/pandas default.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Quantile exposes the interpolation used by the detectors for reporting.
func Quantile(values []float64, q float64) float64 {
	return quantile(values, q)
}
