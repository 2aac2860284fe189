package power

// Phase is a state of the power cycle.
type Phase int32

const (
	PhaseBooting Phase = iota
	PhaseConnecting
	PhaseOperating
	PhaseShuttingDown
	PhaseSleeping
)

func (p Phase) String() string {
	switch p {
	case PhaseBooting:
		return "booting"
	case PhaseConnecting:
		return "connecting"
	case PhaseOperating:
		return "operating"
	case PhaseShuttingDown:
		return "shutting_down"
	case PhaseSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}
