package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/tripqa/internal/domain/model"
)

// Write emits the table with one row per record followed by each
// detector's flag, the vote count and the ensemble decision. Detectors
// missing from a result are written as empty cells.
func Write(w io.Writer, t model.Table, results []model.DetectionResult) error {
	if len(results) != len(t) {
		return fmt.Errorf("%w: %d results for %d records", ErrLength, len(results), len(t))
	}
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for i, rec := range t {
		row := recordCells(rec)
		res := results[i]
		for _, fc := range flagColumns {
			if v, ok := res.Flags[fc.detector]; ok {
				row = append(row, formatBool(v))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, strconv.Itoa(res.EnsembleVoteCount), formatBool(res.IsEnsembleAnomaly))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable emits only the four record columns.
func WriteTable(w io.Writer, t model.Table) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(model.Columns()))
	for _, c := range model.Columns() {
		header = append(header, c.String())
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range t {
		if err := cw.Write(recordCells(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and calls Write.
func WriteFile(path string, t model.Table, results []model.DetectionResult) error {
	return writeFile(path, func(w io.Writer) error { return Write(w, t, results) })
}

// WriteTableFile creates path and calls WriteTable.
func WriteTableFile(path string, t model.Table) error {
	return writeFile(path, func(w io.Writer) error { return WriteTable(w, t) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func recordCells(r model.Record) []string {
	return []string{
		formatOptional(r.TripDurationMin),
		formatOptional(r.SpeedKmh),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// formatFloat writes the shortest round-tripping decimal, keeping a
// trailing ".0" on integral values like pandas does.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
