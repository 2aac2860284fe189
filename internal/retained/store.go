package retained

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store loads and saves the retained block.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps the block in a file.
type FileStore struct {
	// Path of the block file. It should be on tmpfs.
	Path string

	// BootIDPath is read to stamp and check the block. Empty disables the check.
	BootIDPath string
}

// Load reads the block. A missing file, a short file or a block from a
// previous kernel boot all yield the zero State.
func (f FileStore) Load() (State, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	current, err := f.bootID()
	if err != nil {
		return State{}, err
	}

	s, written := decode(data)
	if written != current {
		return State{}, nil
	}
	return s, nil
}

// Save writes the block atomically.
func (f FileStore) Save(s State) error {
	id, err := f.bootID()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, encode(s, id), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// Clear removes the block, which reads back as a full power loss.
func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

func (f FileStore) bootID() (string, error) {
	if f.BootIDPath == "" {
		return normaliseBootID(""), nil
	}
	data, err := os.ReadFile(f.BootIDPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading boot id: %w", ErrStore, err)
	}
	return normaliseBootID(strings.TrimSpace(string(data))), nil
}

// MemoryStore keeps the block in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int

	// FailSave makes Save return ErrStore when set. Use SetFailSave once
	// the store is shared with another goroutine.
	FailSave bool
}

// NewMemoryStore creates a store in the power-on state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save implements Store.
func (m *MemoryStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave {
		return fmt.Errorf("%w: injected failure", ErrStore)
	}
	m.state = s
	m.saves++
	return nil
}

// SetFailSave sets FailSave under the store's lock.
func (m *MemoryStore) SetFailSave(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSave = fail
}

// PowerLoss simulates removing and restoring power.
func (m *MemoryStore) PowerLoss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
