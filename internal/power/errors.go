package power

import "errors"

// Domain-specific errors for the power cycle.
var (
	// ErrWiring indicates the operate-phase tasks could not be assembled.
	ErrWiring = errors.New("power: wiring failed")

	// ErrSleep indicates the sleeper could not enter low-power sleep.
	ErrSleep = errors.New("power: sleep failed")

	// ErrReset indicates the resetter could not restart the node.
	ErrReset = errors.New("power: reset failed")
)
