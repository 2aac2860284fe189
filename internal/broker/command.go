package broker

import "fmt"

// Command payloads. They are case-sensitive.
const (
	CommandOn  = "ON"
	CommandOff = "OFF"
)

// ParseCommand parses a pump command payload.
func ParseCommand(payload []byte) (bool, error) {
	switch string(payload) {
	case CommandOn:
		return true, nil
	case CommandOff:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidCommand, payload)
	}
}

// FormatCommand renders a pump level as a command payload.
func FormatCommand(on bool) string {
	if on {
		return CommandOn
	}
	return CommandOff
}
