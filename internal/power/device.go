package power

import (
	"context"
	"fmt"
	"os"
	"syscall"
)

// Cycler runs one power cycle. *Controller satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context) error
}

// Resetter restarts the node after a failed cycle. A Resetter that returns
// nil without restarting lets Device continue with the next cycle.
type Resetter interface {
	Reset(cause error) error
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func(cause error) error

// Reset implements Resetter.
func (f ResetFunc) Reset(cause error) error {
	return f(cause)
}

// ExecResetter replaces the running process with a fresh copy of the same
// binary and arguments. On success Reset does not return.
type ExecResetter struct{}

// Reset implements Resetter.
func (ExecResetter) Reset(error) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}

// Device loops power cycles for the lifetime of the process.
type Device struct {
	cycler   Cycler
	resetter Resetter
	logger   Logger
}

// NewDevice creates a Device.
func NewDevice(cycler Cycler, resetter Resetter, logger Logger) *Device {
	return &Device{cycler: cycler, resetter: resetter, logger: logger}
}

// Run loops until ctx ends. A failed cycle is handed to the resetter.
//
// Returns:
//   - nil when ctx ends
//   - ErrReset if the resetter could not restart the node
func (d *Device) Run(ctx context.Context) error {
	for {
		err := d.cycler.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			continue
		}

		d.logger.Error("cycle failed, resetting", "error", err)
		if rErr := d.resetter.Reset(err); rErr != nil {
			return fmt.Errorf("%w: %w", ErrReset, rErr)
		}
	}
}
