package display

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nerrad567/plantnode/internal/infrastructure/config"
)

// clearScreen homes the cursor and erases a VT100-compatible console.
const clearScreen = "\x1b[H\x1b[2J"

// Panel is a text output device.
type Panel interface {
	// Write replaces the panel contents with text, waking it if needed.
	Write(text string) error

	// PowerSave blanks the panel.
	PowerSave() error

	Close() error
}

// WriterPanel draws onto an io.Writer such as a framebuffer console.
type WriterPanel struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer

	// Clear emits a clear-screen sequence before every frame.
	Clear bool
}

// NewWriterPanel wraps w. If w is also an io.Closer, Close closes it.
func NewWriterPanel(w io.Writer, clear bool) *WriterPanel {
	p := &WriterPanel{w: w, Clear: clear}
	if c, ok := w.(io.Closer); ok {
		p.closer = c
	}
	return p
}

// Write implements Panel.
func (p *WriterPanel) Write(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := text
	if p.Clear {
		frame = clearScreen + text
	}
	if _, err := io.WriteString(p.w, frame); err != nil {
		return fmt.Errorf("%w: %w", ErrPanel, err)
	}
	return nil
}

// PowerSave implements Panel.
func (p *WriterPanel) PowerSave() error {
	if !p.Clear {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, clearScreen); err != nil {
		return fmt.Errorf("%w: %w", ErrPanel, err)
	}
	return nil
}

// Close implements Panel.
func (p *WriterPanel) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// NopPanel discards everything.
type NopPanel struct{}

func (NopPanel) Write(string) error { return nil }
func (NopPanel) PowerSave() error   { return nil }
func (NopPanel) Close() error       { return nil }

// Open returns the panel selected by cfg.Output.
func Open(cfg config.DisplayConfig) (Panel, error) {
	switch cfg.Output {
	case "", "none":
		return NopPanel{}, nil
	case "stdout":
		// Plain lines so the output interleaves sanely with logs
		return &WriterPanel{w: os.Stdout}, nil
	default:
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %w", ErrPanel, cfg.Output, err)
		}
		return NewWriterPanel(f, true), nil
	}
}
