// Package retained persists the small device state block that must survive
// low-power sleep but not a full power loss.
//
// The block has a fixed layout with no framing:
//
//	offset 0   uint32 little-endian  boot count
//	offset 4   byte                  discovery sent (0 or 1)
//	offset 5   3 bytes               reserved, zero
//	offset 8   36 bytes              kernel boot id at write time
//
// FileStore keeps it in a file, normally on tmpfs. A block written under a
// different kernel boot id is from before a power loss and reads as the
// zero State. MemoryStore is the in-process equivalent used by tests and
// dry runs.
//
// Cell is the only accessor the rest of the node uses. It serialises each
// read-modify-write under a short mutex and writes the result straight
// through to the store.
package retained
