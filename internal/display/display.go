package display

import (
	"context"
	"errors"

	"github.com/nerrad567/plantnode/internal/sensor"
)

// ErrPanel wraps panel I/O failures.
var ErrPanel = errors.New("display: panel error")

// Logger is the logging interface used by Display.
type Logger interface {
	Warn(msg string, args ...any)
}

// Display renders node status on a Panel. It implements broker.Sink.
type Display struct {
	panel  Panel
	logger Logger
}

// New creates a Display.
func New(panel Panel, logger Logger) *Display {
	return &Display{panel: panel, logger: logger}
}

// ShowBanner draws the boot screen.
func (d *Display) ShowBanner(address string, bootCount uint32) {
	d.write(Banner(address, bootCount))
}

// HandleSnapshot draws the snapshot.
func (d *Display) HandleSnapshot(_ context.Context, snap sensor.Snapshot) {
	d.write(Render(snap))
}

// Blank puts the panel into power save before the node sleeps.
func (d *Display) Blank() {
	if err := d.panel.PowerSave(); err != nil {
		d.logger.Warn("display power save failed", "error", err)
	}
}

func (d *Display) write(text string) {
	if err := d.panel.Write(text); err != nil {
		d.logger.Warn("display write failed", "error", err)
	}
}
