package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/tripqa/internal/adapters/csvio"
	service "github.com/okian/tripqa/internal/app"
	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/domain/quality"
)

// Sheet names.
const (
	SheetRecords    = "Records"
	SheetSummary    = "Summary"
	SheetEvaluation = "Evaluation"
)

const defaultSheet = "Sheet1"

// WriteWorkbook saves the run as an XLSX workbook at path.
func WriteWorkbook(path string, rep *service.Report, s *Summary) error {
	f, err := Workbook(rep, s)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWorkbook, path, err)
	}
	return nil
}

// Workbook builds the in-memory workbook with the Records, Summary and
// Evaluation sheets.
func Workbook(rep *service.Report, s *Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, SheetRecords); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrWorkbook, err)
	}
	for _, name := range []string{SheetSummary, SheetEvaluation} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %w", ErrWorkbook, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrWorkbook, err)
	}

	w := &sheetWriter{f: f, bold: bold}
	w.records(rep)
	w.summary(s)
	w.evaluation(s)
	if w.err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrWorkbook, w.err)
	}
	return f, nil
}

// sheetWriter appends rows to sheets and keeps the first error.
type sheetWriter struct {
	f    *excelize.File
	bold int
	err  error
}

func (w *sheetWriter) row(sheet string, r int, values []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) header(sheet string, r int, names ...string) {
	values := make([]interface{}, len(names))
	for i, n := range names {
		values[i] = n
	}
	w.row(sheet, r, values)
	if w.err != nil || len(names) == 0 {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, r)
	last, _ := excelize.CoordinatesToCellName(len(names), r)
	w.err = w.f.SetCellStyle(sheet, first, last, w.bold)
}

func (w *sheetWriter) records(rep *service.Report) {
	header := append(csvio.Header(), "quality_warnings")
	w.header(SheetRecords, 1, header...)
	for i, rec := range rep.Table {
		res := rep.Results[i]
		values := []interface{}{
			optional(rec.TripDurationMin),
			optional(rec.SpeedKmh),
			num(rec.Latitude),
			num(rec.Longitude),
		}
		for _, d := range model.AllDetectors() {
			if v, ok := res.Flags[d]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		values = append(values, res.EnsembleVoteCount, res.IsEnsembleAnomaly, strings.Join(res.Warnings, ";"))
		w.row(SheetRecords, i+2, values)
	}
	if w.err == nil {
		w.err = w.f.SetPanes(SheetRecords, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
}

func (w *sheetWriter) summary(s *Summary) {
	r := 1
	w.row(SheetSummary, r, []interface{}{"run_id", s.RunID})
	r++
	w.row(SheetSummary, r, []interface{}{"records", s.Records})
	r += 2

	w.header(SheetSummary, r, "column", "count", "missing", "missing_pct", "mean", "std",
		"min", "q1", "median", "q3", "max", "lower_fence", "upper_fence", "extreme_low", "extreme_high")
	r++
	for _, c := range s.Columns {
		w.row(SheetSummary, r, []interface{}{
			c.Column.String(), c.Count, c.Missing, num(c.MissingPct), num(c.Mean), num(c.Std),
			num(c.Min), num(c.Q1), num(c.Median), num(c.Q3), num(c.Max),
			num(c.LowerFence), num(c.UpperFence), c.ExtremeLow, c.ExtremeHigh,
		})
		r++
	}
	r++

	w.header(SheetSummary, r, "detector", "anomalies", "percent", "duration_ms")
	r++
	for _, d := range s.Detectors {
		w.row(SheetSummary, r, []interface{}{string(d.Detector), d.Anomalies, num(d.Percent), num(d.Duration)})
		r++
	}
	w.row(SheetSummary, r, []interface{}{"common_anomalies", s.CommonAnomalies})
	r++
	w.row(SheetSummary, r, []interface{}{"ensemble_anomalies", s.EnsembleAnomalies})
	r++
	w.row(SheetSummary, r, []interface{}{"ensemble_rule", ruleText(s)})
	r += 2

	w.header(SheetSummary, r, "quality_warning", "records")
	r++
	for _, q := range quality.AllWarnings() {
		w.row(SheetSummary, r, []interface{}{string(q), s.Warnings[q]})
		r++
	}
	r++

	names := []string{"correlation"}
	for _, c := range model.Columns() {
		names = append(names, c.String())
	}
	w.header(SheetSummary, r, names...)
	r++
	for i, c := range model.Columns() {
		values := []interface{}{c.String()}
		for _, v := range s.Correlation[i] {
			values = append(values, num(v))
		}
		w.row(SheetSummary, r, values)
		r++
	}
}

func (w *sheetWriter) evaluation(s *Summary) {
	w.header(SheetEvaluation, 1, "detector", "tp", "fp", "tn", "fn", "accuracy", "precision", "recall", "f1")
	for i, d := range s.Detectors {
		a := d.Agreement
		w.row(SheetEvaluation, i+2, []interface{}{
			string(d.Detector), a.TruePositive, a.FalsePositive, a.TrueNegative, a.FalseNegative,
			num(a.Accuracy), num(a.Precision), num(a.Recall), num(a.F1),
		})
	}
}

func ruleText(s *Summary) string {
	members := make([]string, len(s.Members))
	for i, m := range s.Members {
		members[i] = string(m)
	}
	return fmt.Sprintf("%d of %s", s.Threshold, strings.Join(members, ","))
}

// num leaves non-finite values as empty cells.
func num(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return num(*v)
}
