package tombmap

import (
	"errors"
	"fmt"

	"github.com/EinfachAndy/tombmap/shared"
)

var (
	// ErrKeyNotFound signals a Pop of a key that is not in the map.
	ErrKeyNotFound = errors.New("key not found")
)

// Map is an open addressing hash map that resolves conflicts with
// linear probing and removes entries by tombstoning them. Three
// index-aligned arrays back the map: one tag byte per slot (see
// slot.go), the keys and the values. Unsuccessful operations are
// bounded by the longest probe distance any insert has used, so a
// miss never scans the whole table.
//
// The map is not safe for concurrent use and must not be structurally
// modified while an iteration pass is running.
type Map[K comparable, V any] struct {
	slots  []uint8
	keys   []K
	values []V
	hasher shared.HashFn[K]

	// length is the number of live entries, tombstones the number of
	// deleted slots still holding probe chains together.
	length     int
	tombstones int

	// maxProbe is the longest probe distance any successful insert has
	// used since the last rehash. No lookup needs to walk further.
	maxProbe int

	// scanFloor is a cached lower bound: no filled slot exists at an
	// index below it. Iteration starts here instead of at slot 0.
	scanFloor int

	// age counts mutations. Iterators snapshot it to detect a map
	// that changed under them.
	age uint64
}

// New creates a new ready to use map.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithHasher[K, V](shared.GetHasher[K]())
}

// NewWithCapacity creates a map with room for at least 'hint' buckets,
// rounded up to the next power of two.
func NewWithCapacity[K comparable, V any](hint int) *Map[K, V] {
	m := &Map[K, V]{hasher: shared.GetHasher[K]()}
	m.rehash(hint)
	return m
}

// NewWithHasher same as `New` but with a given hash function.
func NewWithHasher[K comparable, V any](hasher shared.HashFn[K]) *Map[K, V] {
	m := &Map[K, V]{hasher: hasher}
	m.rehash(shared.MinTableSize)
	return m
}

// init makes the zero Map usable: a default hasher and a minimum
// bucket array are set up on the first insert.
func (m *Map[K, V]) init() {
	if m.hasher == nil {
		m.hasher = shared.GetHasher[K]()
	}
	if len(m.slots) == 0 {
		m.rehash(shared.MinTableSize)
	}
}

// lookup returns the slot index holding key, or -1 if there is none.
func (m *Map[K, V]) lookup(key K, hash uint64) int {
	if m.length == 0 {
		return -1
	}

	var (
		mask = len(m.slots) - 1
		idx  = int(hash & uint64(mask))
		tag  = shortHash(hash)
	)

	for iter := 0; iter <= m.maxProbe; iter++ {
		sh := m.slots[idx]
		if sh == slotEmpty {
			return -1
		}
		if sh == tag && m.keys[idx] == key {
			return idx
		}

		// next index
		idx = (idx + 1) & mask
	}

	return -1
}

// planSlot resolves the slot an insert of key should target. It
// returns the index, whether the key is already there and whether
// planning succeeded. The first tombstone on the probe path is reused
// for new keys. When the bounded probe resolves nothing, a slightly
// longer scan looks for any non-filled slot and raises the probe
// bound; if that fails too, the caller has to grow the table.
func (m *Map[K, V]) planSlot(key K, hash uint64) (idx int, existed, ok bool) {
	var (
		sz    = len(m.slots)
		mask  = sz - 1
		tag   = shortHash(hash)
		avail = -1
		iter  = 0
	)
	idx = int(hash & uint64(mask))

	for ; iter <= m.maxProbe; iter++ {
		sh := m.slots[idx]
		if sh == slotEmpty {
			if avail >= 0 {
				return avail, false, true
			}
			return idx, false, true
		}
		if sh == slotTombstone {
			if avail < 0 {
				avail = idx
			}
		} else if sh == tag && m.keys[idx] == key {
			return idx, true, true
		}

		// next index
		idx = (idx + 1) & mask
	}

	if avail >= 0 {
		return avail, false, true
	}

	// No slot within the probe bound. Scan a little further for any
	// non-filled slot before paying for a grow.
	maxAllowed := shared.Max(maxAllowedProbe, sz>>maxProbeShift)
	for ; iter <= maxAllowed; iter++ {
		if !isFilled(m.slots[idx]) {
			m.maxProbe = iter
			return idx, false, true
		}
		idx = (idx + 1) & mask
	}

	return 0, false, false
}

// findSlot is planSlot plus the grow-and-retry step. Growing lowers
// the load below the failure threshold, so a single retry resolves;
// a second failure means a broken invariant.
func (m *Map[K, V]) findSlot(key K, hash uint64) (int, bool) {
	idx, existed, ok := m.planSlot(key, hash)
	if ok {
		return idx, existed
	}

	sz := len(m.slots)
	next := sz * 2
	if sz > largeTableEntries {
		next = sz + sz>>1
	}
	m.rehash(next)

	idx, existed, ok = m.planSlot(key, hash)
	if !ok {
		panic("tombmap: no free slot after growing")
	}
	return idx, existed
}

// Put maps the given key to the given value. If the key already exists
// its value will be overwritten with the new value.
// Returns true, if the element is a new item in the map.
func (m *Map[K, V]) Put(key K, val V) bool {
	m.init()

	hash := m.hasher(key)
	idx, existed := m.findSlot(key, hash)
	if existed {
		m.values[idx] = val
		m.age++
		return false
	}

	if m.slots[idx] == slotTombstone {
		m.tombstones--
	}
	m.slots[idx] = shortHash(hash)
	m.keys[idx] = key
	m.values[idx] = val
	m.length++
	m.age++
	if idx < m.scanFloor {
		m.scanFloor = idx
	}

	// grow once live and tombstone slots together pass ~66% load
	if (m.length+m.tombstones)*3 > len(m.slots)*2 {
		next := m.length * 2
		if m.length > largeTableEntries {
			next = m.length + m.length>>1
		}
		m.rehash(next)
	}

	return true
}

// Get returns the value stored for this key, or false if not found.
func (m *Map[K, V]) Get(key K) (V, bool) {
	var v V
	if m.length == 0 {
		return v, false
	}

	idx := m.lookup(key, m.hasher(key))
	if idx < 0 {
		return v, false
	}
	return m.values[idx], true
}

// GetDefault returns the value stored for this key, or 'def' if there
// is none.
func (m *Map[K, V]) GetDefault(key K, def V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether the key is in the map.
func (m *Map[K, V]) Has(key K) bool {
	if m.length == 0 {
		return false
	}
	return m.lookup(key, m.hasher(key)) >= 0
}

// Remove removes the specified key-value pair from the map.
// Returns true, if the element was in the map.
func (m *Map[K, V]) Remove(key K) bool {
	if m.length == 0 {
		return false
	}

	idx := m.lookup(key, m.hasher(key))
	if idx < 0 {
		return false
	}
	m.deleteAt(idx)
	return true
}

// Pop removes the key and returns its value. If the key is not in the
// map an error wrapping ErrKeyNotFound is returned.
func (m *Map[K, V]) Pop(key K) (V, error) {
	var v V
	if m.length != 0 {
		if idx := m.lookup(key, m.hasher(key)); idx >= 0 {
			v = m.values[idx]
			m.deleteAt(idx)
			return v, nil
		}
	}
	return v, fmt.Errorf("%v: %w", key, ErrKeyNotFound)
}

// PopDefault removes the key and returns its value, or 'def' if the
// key is not in the map.
func (m *Map[K, V]) PopDefault(key K, def V) V {
	if m.length == 0 {
		return def
	}

	idx := m.lookup(key, m.hasher(key))
	if idx < 0 {
		return def
	}
	v := m.values[idx]
	m.deleteAt(idx)
	return v
}

// deleteAt removes the entry at idx. If the next slot in probe order
// is empty, no probe chain continues across idx, so instead of leaving
// a tombstone the slot and the run of tombstones directly before it
// collapse back to empty. That keeps churning workloads from piling up
// tombstones. Otherwise the slot is tombstoned.
func (m *Map[K, V]) deleteAt(idx int) {
	var (
		zeroK K
		zeroV V
		mask  = len(m.slots) - 1
	)
	m.keys[idx] = zeroK
	m.values[idx] = zeroV

	if m.slots[(idx+1)&mask] == slotEmpty {
		delta := 1
		for {
			delta--
			m.slots[idx] = slotEmpty
			idx = (idx - 1) & mask
			if m.slots[idx] != slotTombstone {
				break
			}
		}
		m.tombstones += delta
	} else {
		m.slots[idx] = slotTombstone
		m.tombstones++
	}

	m.length--
	m.age++
}

// rehash rebuilds the table with room for n entries, dropping all
// tombstones. The new capacity is floored so the live entries still
// fit under the load bound, which makes an explicit shrink request
// safe at any time.
func (m *Map[K, V]) rehash(n int) {
	newsz := shared.TableSizeFor(shared.Max(n, m.length+m.length>>1))

	if m.length == 0 {
		m.slots = make([]uint8, newsz)
		m.keys = make([]K, newsz)
		m.values = make([]V, newsz)
		m.tombstones = 0
		m.maxProbe = 0
		m.scanFloor = 0
		return
	}

	var (
		slots    = make([]uint8, newsz)
		keys     = make([]K, newsz)
		values   = make([]V, newsz)
		mask     = newsz - 1
		maxProbe = 0
	)

	for i, sh := range m.slots {
		if !isFilled(sh) {
			continue
		}

		var (
			start = int(m.hasher(m.keys[i]) & uint64(mask))
			idx   = start
		)
		for slots[idx] != slotEmpty {
			idx = (idx + 1) & mask
		}
		if probe := (idx - start) & mask; probe > maxProbe {
			maxProbe = probe
		}

		// the tag only depends on the hash, reuse it
		slots[idx] = sh
		keys[idx] = m.keys[i]
		values[idx] = m.values[i]
	}

	m.slots = slots
	m.keys = keys
	m.values = values
	m.tombstones = 0
	m.maxProbe = maxProbe
	m.scanFloor = 0
	m.age++
}

// Rehash rebuilds the table with capacity for at least n entries. It
// is the only way to shrink a map that grew in the past.
func (m *Map[K, V]) Rehash(n int) {
	m.init()
	m.rehash(n)
}

// Reserve sets the number of buckets to the most appropriate to contain
// at least n elements. If n is lower than that, the function may have
// no effect.
func (m *Map[K, V]) Reserve(n int) {
	m.init()

	newCap := shared.TableSizeFor(n + n>>1)
	if len(m.slots) < newCap {
		m.rehash(newCap)
	}
}

// Clear removes all key-value pairs from the map. The bucket array
// keeps its size.
func (m *Map[K, V]) Clear() {
	var (
		zeroK K
		zeroV V
	)
	for i := range m.slots {
		m.slots[i] = slotEmpty
		m.keys[i] = zeroK
		m.values[i] = zeroV
	}
	m.length = 0
	m.tombstones = 0
	m.maxProbe = 0
	m.scanFloor = 0
	m.age++
}

// Size returns the number of items in the map.
func (m *Map[K, V]) Size() int {
	return m.length
}

// Cap returns the number of buckets.
func (m *Map[K, V]) Cap() int {
	return len(m.slots)
}

// Load returns the current load of the map. Tombstones count towards
// the load because they lengthen probe chains like live entries do.
func (m *Map[K, V]) Load() float32 {
	if len(m.slots) == 0 {
		return 0
	}
	return float32(m.length+m.tombstones) / float32(len(m.slots))
}

// Copy returns a copy of this map.
func (m *Map[K, V]) Copy() *Map[K, V] {
	newM := &Map[K, V]{
		slots:      make([]uint8, len(m.slots)),
		keys:       make([]K, len(m.keys)),
		values:     make([]V, len(m.values)),
		hasher:     m.hasher,
		length:     m.length,
		tombstones: m.tombstones,
		maxProbe:   m.maxProbe,
		scanFloor:  m.scanFloor,
	}
	copy(newM.slots, m.slots)
	copy(newM.keys, m.keys)
	copy(newM.values, m.values)
	return newM
}
