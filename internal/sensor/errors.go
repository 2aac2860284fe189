package sensor

import "errors"

// Domain-specific errors for sensor operations.
// Use errors.Is() to check for these errors.
var (
	// ErrRead indicates a probe could not be read.
	ErrRead = errors.New("sensor: read failed")

	// ErrOutOfRange indicates a probe returned a value outside its plausible range.
	ErrOutOfRange = errors.New("sensor: value out of range")

	// ErrNoValue indicates too few raw reads succeeded to compute a trimmed mean.
	ErrNoValue = errors.New("sensor: not enough samples")
)
