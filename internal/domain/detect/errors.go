package detect

import "errors"

// Sentinel configuration errors. Callers match them with errors.Is.
var (
	ErrEmptyTable       = errors.New("empty table")
	ErrMissingColumn    = errors.New("column has no values")
	ErrNoColumns        = errors.New("no columns selected")
	ErrTooFewSamples    = errors.New("too few samples")
	ErrInvalidParameter = errors.New("invalid detector parameter")
	ErrUnknownPolicy    = errors.New("unknown missing-value policy")
)
