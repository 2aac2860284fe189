package retained

import "sync"

// Cell is the single accessor for the retained block.
//
// Each Update holds the mutex for one read-modify-write and persists the
// result before releasing it. A change whose save failed stays in the
// cached copy and is written by the next successful Update or Flush.
type Cell struct {
	mu     sync.Mutex
	store  Store
	state  State
	loaded bool
	dirty  bool
}

// NewCell wraps store.
func NewCell(store Store) *Cell {
	return &Cell{store: store}
}

// Load reads the block from the store into the cell.
func (c *Cell) Load() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.Load()
	if err != nil {
		return State{}, err
	}
	c.state = s
	c.loaded = true
	c.dirty = false
	return s, nil
}

// Reset starts the cell from the power-on state without reading the
// store. The cell is dirty until the zero state is saved.
func (c *Cell) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = State{}
	c.loaded = true
	c.dirty = true
	return c.state
}

// Get returns the cached state.
func (c *Cell) Get() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update applies fn to the state and persists it. On a store error the
// change is kept in the cell, marked dirty, and the error is returned.
func (c *Cell) Update(fn func(*State)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return c.state, ErrNotLoaded
	}

	fn(&c.state)
	return c.state, c.save()
}

// Flush writes the cached state again.
func (c *Cell) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return ErrNotLoaded
	}
	return c.save()
}

// Dirty reports whether the cell holds a change the store has not accepted.
func (c *Cell) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *Cell) save() error {
	if err := c.store.Save(c.state); err != nil {
		c.dirty = true
		return err
	}
	c.dirty = false
	return nil
}
