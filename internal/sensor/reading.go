package sensor

import (
	"strconv"
	"time"
)

// Reading is one classified value. How Value is interpreted depends on Kind:
// a MoistureClass or WaterLevelClass ordinal, 0/1 for PumpTrigger, or a
// plain number in the kind's unit.
type Reading struct {
	Kind  Kind `json:"kind"`
	Value int  `json:"value"`
}

// Bool reports a boolean reading's value.
func (r Reading) Bool() bool {
	return r.Value != 0
}

// Text renders the value the way it is published, e.g. "23", "Moist", "true".
func (r Reading) Text() string {
	switch r.Kind {
	case SoilMoisture:
		return MoistureClass(r.Value).String()
	case WaterLevel:
		return WaterLevelClass(r.Value).String()
	case PumpTrigger:
		return strconv.FormatBool(r.Bool())
	default:
		return strconv.Itoa(r.Value)
	}
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Snapshot is the ordered result of one sampling pass. Failed sensors are
// absent, so a snapshot may hold anything from zero to MaxReadings readings.
type Snapshot struct {
	TakenAt  time.Time `json:"taken_at"`
	Readings []Reading `json:"readings"`
}

// Add appends r. It reports false and drops r once the snapshot is full.
func (s *Snapshot) Add(r Reading) bool {
	if len(s.Readings) >= MaxReadings {
		return false
	}
	s.Readings = append(s.Readings, r)
	return true
}

// Get returns the first reading of the given kind.
func (s Snapshot) Get(k Kind) (Reading, bool) {
	for _, r := range s.Readings {
		if r.Kind == k {
			return r, true
		}
	}
	return Reading{}, false
}

// Len returns the number of readings.
func (s Snapshot) Len() int {
	return len(s.Readings)
}
