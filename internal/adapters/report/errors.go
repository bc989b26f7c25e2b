package report

import (
	"errors"
)

// Sentinel error kinds for report output.
var (
	ErrWorkbook = errors.New("workbook write failed")
)
