// Package csvio reads trip tables from CSV and writes annotated results.
//
// Files are UTF-8. A leading byte order mark is skipped on read and always
// written on output, so spreadsheet tools pick the right encoding.
package csvio

import (
	"github.com/okian/tripqa/internal/domain/model"
)

const bom = "\ufeff"

// Output column names beyond the four record columns.
const (
	ColumnVoteCount = "ensemble_vote_count"
	ColumnEnsemble  = "is_ensemble_anomaly"
)

// flagColumns maps detectors to their output column, in output order.
var flagColumns = []struct {
	detector model.DetectorName
	name     string
}{
	{model.DetectorZScore, "anomaly_zscore"},
	{model.DetectorIQR, "anomaly_iqr"},
	{model.DetectorIsolationForest, "anomaly_isolation"},
	{model.DetectorDBSCAN, "anomaly_dbscan"},
	{model.DetectorPCAReconstruction, "anomaly_pca"},
}

// FlagColumn returns the output column name for a detector.
func FlagColumn(d model.DetectorName) string {
	for _, fc := range flagColumns {
		if fc.detector == d {
			return fc.name
		}
	}
	return "anomaly_" + string(d)
}

// Header returns the full output header.
func Header() []string {
	h := make([]string, 0, len(model.Columns())+len(flagColumns)+2)
	for _, c := range model.Columns() {
		h = append(h, c.String())
	}
	for _, fc := range flagColumns {
		h = append(h, fc.name)
	}
	return append(h, ColumnVoteCount, ColumnEnsemble)
}
