package pump

import "errors"

// ErrRelay indicates the relay line could not be driven.
var ErrRelay = errors.New("pump: relay write failed")
