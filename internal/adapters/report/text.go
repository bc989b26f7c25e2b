package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/domain/quality"
)

// WriteText prints a human-readable digest of s.
func WriteText(w io.Writer, s *Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(tw, format, args...)
	}

	p("run %s: %d records\n\n", s.RunID, s.Records)

	p("column\tcount\tmissing\tmean\tstd\tmin\tq1\tmedian\tq3\tmax\textreme low\textreme high\n")
	for _, c := range s.Columns {
		p("%s\t%d\t%d (%.2f%%)\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			c.Column, c.Count, c.Missing, c.MissingPct,
			f3(c.Mean), f3(c.Std), f3(c.Min), f3(c.Q1), f3(c.Median), f3(c.Q3), f3(c.Max),
			c.ExtremeLow, c.ExtremeHigh)
	}
	p("\n")

	p("detector\tanomalies\tpercent\tagreement f1\n")
	for _, d := range s.Detectors {
		p("%s\t%d\t%.2f%%\t%.4f\n", d.Detector, d.Anomalies, d.Percent, d.Agreement.F1)
	}
	p("\n")
	p("common anomalies (all baseline detectors):\t%d\n", s.CommonAnomalies)
	p("ensemble anomalies (%s):\t%d\n", ruleText(s), s.EnsembleAnomalies)

	var warned bool
	for _, q := range quality.AllWarnings() {
		if n := s.Warnings[q]; n > 0 {
			if !warned {
				p("\nquality warnings\n")
				warned = true
			}
			p("%s\t%d\n", q, n)
		}
	}

	p("\ncorrelation")
	for _, c := range model.Columns() {
		p("\t%s", c)
	}
	p("\n")
	for i, c := range model.Columns() {
		p("%s", c)
		for _, v := range s.Correlation[i] {
			p("\t%s", f3(v))
		}
		p("\n")
	}
	return tw.Flush()
}

func f3(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
