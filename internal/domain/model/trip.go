// Package model contains domain models passed between layers.
package model

import "fmt"

// Record is one trip observation. Duration and speed may be absent (nil),
// which is distinct from a zero reading.
type Record struct {
	TripDurationMin *float64 // trip duration in minutes, nil when missing
	SpeedKmh        *float64 // average speed in km/h, nil when missing
	Latitude        float64
	Longitude       float64
}

// Table is an ordered, read-only sequence of records. Order is kept for
// reproducible indexing in reports and carries no other meaning.
type Table []Record

// Float returns a pointer to v, used to build present values.
func Float(v float64) *float64 { return &v }

// Column identifies a numeric field of a Record.
type Column int

// Numeric columns in canonical CSV order.
const (
	ColumnTripDuration Column = iota
	ColumnSpeed
	ColumnLatitude
	ColumnLongitude
)

var columnNames = map[Column]string{
	ColumnTripDuration: "trip_duration_min",
	ColumnSpeed:        "speed_kmh",
	ColumnLatitude:     "latitude",
	ColumnLongitude:    "longitude",
}

// Columns lists every numeric column in canonical order.
func Columns() []Column {
	return []Column{ColumnTripDuration, ColumnSpeed, ColumnLatitude, ColumnLongitude}
}

func (c Column) String() string {
	if n, ok := columnNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseColumn maps a canonical column name back to its Column.
func ParseColumn(name string) (Column, error) {
	for c, n := range columnNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

// Value returns the column's value in r and whether it is present.
func (c Column) Value(r Record) (float64, bool) {
	switch c {
	case ColumnTripDuration:
		if r.TripDurationMin == nil {
			return 0, false
		}
		return *r.TripDurationMin, true
	case ColumnSpeed:
		if r.SpeedKmh == nil {
			return 0, false
		}
		return *r.SpeedKmh, true
	case ColumnLatitude:
		return r.Latitude, true
	case ColumnLongitude:
		return r.Longitude, true
	default:
		return 0, false
	}
}

// DetectorName names a detector in results and reports.
type DetectorName string

// Known detectors.
const (
	DetectorZScore            DetectorName = "zscore"
	DetectorIQR               DetectorName = "iqr"
	DetectorIsolationForest   DetectorName = "isolation_forest"
	DetectorDBSCAN            DetectorName = "dbscan"
	DetectorPCAReconstruction DetectorName = "pca_reconstruction"
)

// AllDetectors lists the detectors in reporting order.
func AllDetectors() []DetectorName {
	return []DetectorName{
		DetectorZScore,
		DetectorIQR,
		DetectorIsolationForest,
		DetectorDBSCAN,
		DetectorPCAReconstruction,
	}
}

// BaselineDetectors are the three detectors combined by the ensemble vote.
func BaselineDetectors() []DetectorName {
	return []DetectorName{DetectorZScore, DetectorIQR, DetectorIsolationForest}
}

// Flags holds one anomaly flag per record, in table order.
type Flags []bool

// Count returns the number of set flags.
func (f Flags) Count() int {
	n := 0
	for _, v := range f {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the positions of set flags.
func (f Flags) Indices() []int {
	out := make([]int, 0, f.Count())
	for i, v := range f {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// DetectionResult is the per-record outcome of a run.
type DetectionResult struct {
	Flags             map[DetectorName]bool
	EnsembleVoteCount int
	IsEnsembleAnomaly bool
	Warnings          []string
}
