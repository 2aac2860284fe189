package retained

import (
	"encoding/binary"
	"fmt"
)

const (
	offsetBootCount = 0
	offsetDiscovery = 4
	offsetBootID    = 8
	bootIDLen       = 36

	// BlockSize is the encoded size of the retained block.
	BlockSize = offsetBootID + bootIDLen
)

// State is the persisted device state.
type State struct {
	// BootCount increments exactly once per wake.
	BootCount uint32 `json:"boot_count"`

	// DiscoverySent is set after the first discovery announcement of a power session.
	DiscoverySent bool `json:"discovery_sent"`
}

func (s State) String() string {
	return fmt.Sprintf("boot_count=%d discovery_sent=%t", s.BootCount, s.DiscoverySent)
}

// encode lays s out in a BlockSize buffer stamped with bootID.
func encode(s State, bootID string) []byte {
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(buf[offsetBootCount:], s.BootCount)
	if s.DiscoverySent {
		buf[offsetDiscovery] = 1
	}
	copy(buf[offsetBootID:], bootID)
	return buf
}

// decode parses a block and returns the boot id it was written under.
// A short block decodes as the zero State.
func decode(buf []byte) (State, string) {
	if len(buf) < BlockSize {
		return State{}, ""
	}
	s := State{
		BootCount:     binary.LittleEndian.Uint32(buf[offsetBootCount:]),
		DiscoverySent: buf[offsetDiscovery] != 0,
	}
	return s, normaliseBootID(string(buf[offsetBootID:BlockSize]))
}

// normaliseBootID trims or zero-pads id to the fixed field width.
func normaliseBootID(id string) string {
	b := make([]byte, bootIDLen)
	copy(b, id)
	return string(b)
}
