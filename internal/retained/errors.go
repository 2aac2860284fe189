package retained

import "errors"

var (
	// ErrStore indicates the backing store could not be read or written.
	ErrStore = errors.New("retained: store failed")

	// ErrNotLoaded indicates Cell.Update was called before Cell.Load.
	ErrNotLoaded = errors.New("retained: cell not loaded")
)
