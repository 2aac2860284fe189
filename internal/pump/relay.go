package pump

import (
	"fmt"
	"os"
	"sync"
)

// Relay drives the pump's relay line. It is active high.
type Relay interface {
	Set(on bool) error
}

// GPIORelay writes to a sysfs GPIO value file, for example
// /sys/class/gpio/gpio17/value. The line must already be exported and
// configured as an output.
type GPIORelay struct {
	ValuePath string
}

// Set implements Relay.
func (g GPIORelay) Set(on bool) error {
	level := []byte("0")
	if on {
		level = []byte("1")
	}
	if err := os.WriteFile(g.ValuePath, level, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrRelay, err)
	}
	return nil
}

// MemoryRelay records every level it is driven to.
type MemoryRelay struct {
	mu     sync.Mutex
	levels []bool

	// Err, when set, is returned by Set and the level is not recorded.
	Err error
}

// Set implements Relay.
func (m *MemoryRelay) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.levels = append(m.levels, on)
	return nil
}

// Level returns the last level written, false if none.
func (m *MemoryRelay) Level() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.levels) == 0 {
		return false
	}
	return m.levels[len(m.levels)-1]
}

// Levels returns a copy of every level written, oldest first.
func (m *MemoryRelay) Levels() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.levels))
	copy(out, m.levels)
	return out
}
