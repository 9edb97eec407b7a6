// Package tombmap implements an open addressing hash map that uses
// linear probing with tombstone deletion as conflict resolution.
package tombmap

// Per-slot tag values. A slot is in exactly one of three states:
//
//	0x00        empty, terminates every probe chain crossing it
//	0x7f        tombstone, a deleted slot that keeps probe chains intact
//	0x80..0xff  filled, the low 7 bits hold a fragment of the key's hash
//
// The fragment lets probing reject almost all non-matching keys with a
// one-byte compare before touching the key array.
const (
	slotEmpty     = uint8(0x00)
	slotTombstone = uint8(0x7f)
	slotFilledBit = uint8(0x80)
)

const (
	// maxAllowedProbe and maxProbeShift bound the extended probe scan an
	// insert may run before forcing a grow: max(16, capacity>>6) steps.
	maxAllowedProbe = 16
	maxProbeShift   = 6

	// largeTableEntries is the live count past which growth switches to a
	// smaller multiplier to bound peak memory during a rehash.
	largeTableEntries = 64000
)

// shortHash derives the slot tag for a filled bucket from the key's
// hash: the top 7 bits with the filled bit forced on, so it can never
// equal slotEmpty or slotTombstone.
func shortHash(hash uint64) uint8 {
	return uint8(hash>>57) | slotFilledBit
}

func isFilled(tag uint8) bool {
	return tag&slotFilledBit != 0
}
