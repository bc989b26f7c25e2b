package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/tripqa/internal/domain/model"
)

const ctxCheckEvery = 1024

var errRequired = errors.New("value required")

// Read parses a trip table. Extra columns are ignored.
func Read(ctx context.Context, r io.Reader) (model.Table, error) {
	t, _, err := read(ctx, r, false)
	return t, err
}

// ReadResults parses a table previously written by Write together with its
// per-record detection results. Detector columns that are absent or empty
// are left out of each result's Flags.
func ReadResults(ctx context.Context, r io.Reader) (model.Table, []model.DetectionResult, error) {
	return read(ctx, r, true)
}

// ReadFile opens path and calls Read.
func ReadFile(ctx context.Context, path string) (model.Table, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrParse, path, err)
	}
	defer func() { _ = f.Close() }()
	return Read(ctx, f)
}

func read(ctx context.Context, r io.Reader, withResults bool) (model.Table, []model.DetectionResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: empty input", ErrParse)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header: %w", ErrParse, err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		pos[strings.TrimSpace(h)] = i
	}
	for _, c := range model.Columns() {
		if _, ok := pos[c.String()]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var (
		table   model.Table
		results []model.DetectionResult
	)
	for line := 2; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
		}

		rec, err := parseRecord(row, pos)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
		}
		table = append(table, rec)

		if withResults {
			res, err := parseResult(row, pos)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
			}
			results = append(results, res)
		}
	}
	return table, results, nil
}

func parseRecord(row []string, pos map[string]int) (model.Record, error) {
	var rec model.Record
	var err error
	if rec.TripDurationMin, err = optionalFloat(cell(row, pos, model.ColumnTripDuration.String())); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColumnTripDuration, err)
	}
	if rec.SpeedKmh, err = optionalFloat(cell(row, pos, model.ColumnSpeed.String())); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColumnSpeed, err)
	}
	if rec.Latitude, err = requiredFloat(cell(row, pos, model.ColumnLatitude.String())); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColumnLatitude, err)
	}
	if rec.Longitude, err = requiredFloat(cell(row, pos, model.ColumnLongitude.String())); err != nil {
		return rec, fmt.Errorf("%s: %w", model.ColumnLongitude, err)
	}
	return rec, nil
}

func parseResult(row []string, pos map[string]int) (model.DetectionResult, error) {
	res := model.DetectionResult{Flags: make(map[model.DetectorName]bool)}
	for _, fc := range flagColumns {
		v := cell(row, pos, fc.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return res, fmt.Errorf("%s: %w", fc.name, err)
		}
		res.Flags[fc.detector] = b
	}
	if v := cell(row, pos, ColumnVoteCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return res, fmt.Errorf("%s: %w", ColumnVoteCount, err)
		}
		res.EnsembleVoteCount = n
	}
	if v := cell(row, pos, ColumnEnsemble); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return res, fmt.Errorf("%s: %w", ColumnEnsemble, err)
		}
		res.IsEnsembleAnomaly = b
	}
	return res, nil
}

func cell(row []string, pos map[string]int, name string) string {
	i, ok := pos[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optionalFloat treats empty cells and NA markers as absent. A literal NaN
// or Inf is a present value, which keeps written tables readable as-is.
func optionalFloat(s string) (*float64, error) {
	if isMissing(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func requiredFloat(s string) (float64, error) {
	if isMissing(s) {
		return math.NaN(), errRequired
	}
	return strconv.ParseFloat(s, 64)
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "null", "none":
		return true
	}
	return false
}
