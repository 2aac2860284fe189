package broker

import "errors"

var (
	// ErrProtocol indicates a session-level failure: dial, subscribe,
	// publish or an unexpected disconnect. The reconnect loop recovers it.
	ErrProtocol = errors.New("broker: protocol error")

	// ErrInvalidCommand indicates a command payload other than ON or OFF.
	ErrInvalidCommand = errors.New("broker: invalid command payload")
)
