package csvio

import (
	"errors"
)

// Sentinel error kinds for CSV input and output.
var (
	ErrMissingColumn = errors.New("required column missing from header")
	ErrParse         = errors.New("csv parse failed")
	ErrLength        = errors.New("results do not match table length")
)
