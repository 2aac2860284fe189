package network

import "errors"

// Domain-specific errors for link operations.
var (
	// ErrConnectFailed indicates the link did not come up in time.
	ErrConnectFailed = errors.New("network: connect failed")

	// ErrLinkLost indicates the link dropped during operation and could not be restored.
	ErrLinkLost = errors.New("network: link lost")

	// ErrDisconnectFailed indicates the configured down command failed.
	ErrDisconnectFailed = errors.New("network: disconnect failed")
)
