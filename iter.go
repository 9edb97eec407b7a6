package tombmap

// nextLive returns the first index at or after start whose slot is
// filled, or -1 when none remain.
func (m *Map[K, V]) nextLive(start int) int {
	for i := start; i < len(m.slots); i++ {
		if isFilled(m.slots[i]) {
			return i
		}
	}
	return -1
}

// skipSlotsFloor advances the cached scan floor to the first live slot
// and returns it. Repeated iteration starts over an unmodified prefix
// reuse the cached value instead of rescanning it.
func (m *Map[K, V]) skipSlotsFloor() int {
	idx := m.nextLive(m.scanFloor)
	if idx < 0 {
		return len(m.slots)
	}
	m.scanFloor = idx
	return idx
}

// Iterator walks the live entries of a map in slot order. The map must
// not be structurally modified while an iterator is in use: a rehash
// relocates every entry and a delete can collapse slots, either of
// which invalidates the cursor.
type Iterator[K comparable, V any] struct {
	m   *Map[K, V]
	pos int
	age uint64
}

// Iter returns an iterator positioned at the first live entry.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{
		m:   m,
		pos: m.skipSlotsFloor(),
		age: m.age,
	}
}

// Next returns the next key-value pair, or false when the pass is
// done. It panics if the map was modified after the iterator was
// created.
func (it *Iterator[K, V]) Next() (K, V, bool) {
	m := it.m
	if it.age != m.age {
		panic("tombmap: map modified during iteration")
	}

	idx := m.nextLive(it.pos)
	if idx < 0 {
		var (
			k K
			v V
		)
		it.pos = len(m.slots)
		return k, v, false
	}

	it.pos = idx + 1
	return m.keys[idx], m.values[idx], true
}

// Each calls 'fn' on every key-value pair in the map in slot order.
// If 'fn' returns true, the iteration stops.
func (m *Map[K, V]) Each(fn func(key K, val V) bool) {
	for i := m.skipSlotsFloor(); i >= 0 && i < len(m.slots); i = m.nextLive(i + 1) {
		if stop := fn(m.keys[i], m.values[i]); stop {
			// stop iteration
			return
		}
	}
}
