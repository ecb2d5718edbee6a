// Package rhmap implements a fixed-size, open-addressing hash map with
// robin-hood displacement, used to look up an active custody entry by
// storage id when the custody id isn't already known (a retransmit scan
// walking storage, say).
//
// No pack example implements this data structure; built directly from
// spec.md §4.6's prose (displacement-based collision resolution, tracked
// maximum probe distance, fixed size at creation, caller-enforced load
// factor) since no bplib source file for it was retrieved.
package rhmap

import "github.com/dtn6/bplib-go/bundle"

type slot struct {
	occupied bool
	key      uint64
	value    bundle.ActiveBundle
	probe    int // distance this entry currently sits from its ideal slot
}

// Map is a fixed-capacity robin-hood hash map from a storage id to the
// ActiveBundle stored under it.
type Map struct {
	slots       []slot
	count       int
	maxProbe    int
}

// New returns a Map with room for capacity entries. Capacity is fixed for
// the Map's lifetime; the caller is responsible for keeping load factor
// at or below 0.75, as the table never grows: Insert returns ErrFull only
// once every slot is occupied.
func New(capacity int) *Map {
	if capacity < 1 {
		capacity = 1
	}
	return &Map{slots: make([]slot, capacity)}
}

func (m *Map) index(key uint64) int {
	// A cheap multiplicative mix so sequential storage ids (the common
	// case -- ids are handed out by an incrementing counter) don't all
	// collide into a short run of adjacent slots.
	h := key * 11400714819323198485 // 2^64 / golden ratio
	return int(h % uint64(len(m.slots)))
}

// ErrFull is returned by Insert for a new key when every slot of the
// table is occupied.
type ErrFull struct{}

func (ErrFull) Error() string { return "rhmap: table full" }

// Insert places key/value, displacing whichever existing entry has
// traveled the shortest distance from its own ideal slot -- the
// defining robin-hood rule: the entry closest to home gives way.
func (m *Map) Insert(key uint64, value bundle.ActiveBundle) error {
	if existing := m.find(key); existing >= 0 {
		m.slots[existing].value = value
		return nil
	}
	if m.count >= len(m.slots) {
		return ErrFull{}
	}

	entry := slot{occupied: true, key: key, value: value, probe: 0}
	idx := m.index(key)

	for {
		cur := &m.slots[idx]
		if !cur.occupied {
			*cur = entry
			m.count++
			if entry.probe > m.maxProbe {
				m.maxProbe = entry.probe
			}
			return nil
		}

		if cur.probe < entry.probe {
			// Steal this slot; carry on placing the richer (less
			// displaced) entry that used to live here.
			if entry.probe > m.maxProbe {
				m.maxProbe = entry.probe
			}
			entry, *cur = *cur, entry
		}

		entry.probe++
		idx = (idx + 1) % len(m.slots)
	}
}

// find returns the slot index currently holding key, or -1.
func (m *Map) find(key uint64) int {
	idx := m.index(key)
	for probe := 0; probe <= m.maxProbe; probe++ {
		cur := &m.slots[idx]
		if !cur.occupied {
			return -1
		}
		if cur.key == key {
			return idx
		}
		idx = (idx + 1) % len(m.slots)
	}
	return -1
}

// Get returns the value stored under key, if any.
func (m *Map) Get(key uint64) (bundle.ActiveBundle, bool) {
	idx := m.find(key)
	if idx < 0 {
		return bundle.ActiveBundle{}, false
	}
	return m.slots[idx].value, true
}

// Delete removes key, backward-shifting subsequent entries to close the
// gap the way robin-hood deletion requires (a tombstone would grow every
// later probe's distance unnecessarily).
func (m *Map) Delete(key uint64) bool {
	idx := m.find(key)
	if idx < 0 {
		return false
	}

	m.slots[idx] = slot{}
	m.count--

	next := (idx + 1) % len(m.slots)
	for m.slots[next].occupied && m.slots[next].probe > 0 {
		m.slots[idx] = m.slots[next]
		m.slots[idx].probe--
		m.slots[next] = slot{}
		idx = next
		next = (idx + 1) % len(m.slots)
	}

	return true
}

// Len returns the current number of entries.
func (m *Map) Len() int {
	return m.count
}

// Cap returns the fixed table capacity.
func (m *Map) Cap() int {
	return len(m.slots)
}

// LoadFactor returns the current occupancy ratio, for a caller enforcing
// the ≤0.75 policy before calling Insert.
func (m *Map) LoadFactor() float64 {
	return float64(m.count) / float64(len(m.slots))
}
