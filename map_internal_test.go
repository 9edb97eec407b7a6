package tombmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// lastSlot pins every probe start to the last bucket of a minimum size
// table, so the chains wrap around to slot 0 deterministically.
func lastSlot(uint64) uint64 { return 15 }

func TestProbeBoundGrows(t *testing.T) {
	m := NewWithHasher[uint64, uint32](lastSlot)

	for k := uint64(1); k <= 5; k++ {
		m.Put(k, uint32(k))
	}

	// keys 1..5 occupy slots 15, 0, 1, 2, 3
	assert.Equal(t, 4, m.maxProbe)
	assert.Equal(t, 5, m.length)
	assert.Equal(t, 0, m.tombstones)
	assert.True(t, isFilled(m.slots[15]))
	for i := 0; i <= 3; i++ {
		assert.True(t, isFilled(m.slots[i]))
	}
}

func TestTombstoneCollapse(t *testing.T) {
	m := NewWithHasher[uint64, uint32](lastSlot)
	for k := uint64(1); k <= 5; k++ {
		m.Put(k, uint32(k))
	}

	// key 3 sits at slot 1 in the middle of the chain, its successor
	// is filled, so it must leave a tombstone behind
	m.Remove(3)
	assert.Equal(t, slotTombstone, m.slots[1])
	assert.Equal(t, 1, m.tombstones)

	// key 5 sits at the chain end, its successor is empty: collapse
	m.Remove(5)
	assert.Equal(t, slotEmpty, m.slots[3])
	assert.Equal(t, 1, m.tombstones)

	// key 4 now ends the chain too; collapsing it sweeps up the
	// neighboring tombstone from key 3 as well
	m.Remove(4)
	assert.Equal(t, slotEmpty, m.slots[2])
	assert.Equal(t, slotEmpty, m.slots[1])
	assert.Equal(t, 0, m.tombstones)

	// remaining keys stay reachable across the wraparound
	for _, k := range []uint64{1, 2} {
		v, ok := m.Get(k)
		assert.True(t, ok)
		assert.Equal(t, uint32(k), v)
	}

	m.Remove(2)
	m.Remove(1)
	assert.Equal(t, 0, m.length)
	for i := range m.slots {
		assert.Equal(t, slotEmpty, m.slots[i])
	}
}

func TestTombstoneReuse(t *testing.T) {
	m := NewWithHasher[uint64, uint32](lastSlot)
	m.Put(1, 1)
	m.Put(2, 2)
	m.Put(3, 3)

	// key 2 at slot 0 is mid-chain, so it tombstones
	m.Remove(2)
	assert.Equal(t, 1, m.tombstones)

	// a new key reuses the first tombstone on its probe path
	m.Put(9, 9)
	assert.Equal(t, 0, m.tombstones)
	assert.Equal(t, uint64(9), m.keys[0])

	v, ok := m.Get(9)
	assert.True(t, ok)
	assert.Equal(t, uint32(9), v)
}

func TestRehashDropsTombstones(t *testing.T) {
	m := NewWithHasher[uint64, uint64](func(k uint64) uint64 { return k })
	for k := uint64(0); k < 8; k++ {
		m.Put(k, k)
	}
	for k := uint64(0); k < 8; k += 2 {
		m.Remove(k)
	}
	assert.Greater(t, m.tombstones, 0)

	before := m.length
	m.Rehash(16)

	assert.Equal(t, 0, m.tombstones)
	assert.Equal(t, before, m.length)
	for k := uint64(1); k < 8; k += 2 {
		v, ok := m.Get(k)
		assert.True(t, ok)
		assert.Equal(t, k, v)
	}
}

func TestScanFloor(t *testing.T) {
	m := NewWithHasher[uint64, uint64](func(k uint64) uint64 { return k })

	m.Put(8, 8)
	m.Put(9, 9)

	// starting an iteration caches the floor below the first live slot
	m.Iter()
	assert.Equal(t, 8, m.scanFloor)

	// inserting below the floor has to lower it again
	m.Put(2, 2)
	assert.Equal(t, 2, m.scanFloor)

	m.Rehash(16)
	assert.Equal(t, 0, m.scanFloor)
}

func TestMutationCounter(t *testing.T) {
	m := New[int, int]()
	age := m.age

	m.Put(1, 1)
	assert.Greater(t, m.age, age)

	age = m.age
	m.Put(1, 2) // value update counts as a mutation too
	assert.Greater(t, m.age, age)

	age = m.age
	m.Remove(1)
	assert.Greater(t, m.age, age)
}
