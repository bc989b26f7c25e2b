// Package quality reports non-fatal data-quality problems in trip records.
//
// Warnings are observations only: records are never dropped or rewritten.
package quality

import (
	"math"

	"github.com/okian/tripqa/internal/domain/model"
)

// Physical bounds of a GPS fix.
const (
	maxAbsLatitude  = 90.0
	maxAbsLongitude = 180.0
)

// Warning names one data-quality problem.
type Warning string

// Known warnings.
const (
	MissingDuration     Warning = "missing_duration"
	MissingSpeed        Warning = "missing_speed"
	NonFiniteDuration   Warning = "non_finite_duration"
	NonFiniteSpeed      Warning = "non_finite_speed"
	NonPositiveDuration Warning = "non_positive_duration"
	NegativeSpeed       Warning = "negative_speed"
	LatitudeOutOfRange  Warning = "latitude_out_of_range"
	LongitudeOutOfRange Warning = "longitude_out_of_range"
)

// AllWarnings lists every warning in reporting order.
func AllWarnings() []Warning {
	return []Warning{
		MissingDuration, MissingSpeed,
		NonFiniteDuration, NonFiniteSpeed,
		NonPositiveDuration, NegativeSpeed,
		LatitudeOutOfRange, LongitudeOutOfRange,
	}
}

// Check returns the warnings that apply to r, in AllWarnings order.
func Check(r model.Record) []Warning {
	var out []Warning
	if r.TripDurationMin == nil {
		out = append(out, MissingDuration)
	}
	if r.SpeedKmh == nil {
		out = append(out, MissingSpeed)
	}
	if r.TripDurationMin != nil && !finite(*r.TripDurationMin) {
		out = append(out, NonFiniteDuration)
	}
	if r.SpeedKmh != nil && !finite(*r.SpeedKmh) {
		out = append(out, NonFiniteSpeed)
	}
	if r.TripDurationMin != nil && *r.TripDurationMin <= 0 {
		out = append(out, NonPositiveDuration)
	}
	if r.SpeedKmh != nil && *r.SpeedKmh < 0 {
		out = append(out, NegativeSpeed)
	}
	if !finite(r.Latitude) || math.Abs(r.Latitude) > maxAbsLatitude {
		out = append(out, LatitudeOutOfRange)
	}
	if !finite(r.Longitude) || math.Abs(r.Longitude) > maxAbsLongitude {
		out = append(out, LongitudeOutOfRange)
	}
	return out
}

// Scan checks every record of t.
func Scan(t model.Table) [][]Warning {
	out := make([][]Warning, len(t))
	for i, r := range t {
		out[i] = Check(r)
	}
	return out
}

// Counts tallies warnings by kind.
func Counts(warnings [][]Warning) map[Warning]int {
	out := make(map[Warning]int)
	for _, ws := range warnings {
		for _, w := range ws {
			out[w]++
		}
	}
	return out
}

// Strings converts warnings to their names.
func Strings(ws []Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = string(w)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
