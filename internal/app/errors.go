package service

import (
	"errors"
)

// Sentinel error kinds for the service.
var (
	ErrUnknownDetector = errors.New("unknown detector")
)
