// Package roster defines the pickable entries handed out by a host and the
// membership rules the bridge enforces on them.
package roster

import (
	"sync"
)

// MinActive is the smallest number of active entries a roster may be left
// with after a removal.
const MinActive = 2

// Entry is one pickable participant. Entries are immutable once fetched.
type Entry struct {
	ID          string `json:"id" mapstructure:"id"`
	DisplayName string `json:"displayName" mapstructure:"display_name"`
	SeatLabel   string `json:"seatLabel,omitempty" mapstructure:"seat_label"`
}

// Valid reports whether the entry carries the required fields.
func (e Entry) Valid() bool {
	return e.ID != "" && e.DisplayName != ""
}

// Roster holds entries in arrival order together with the set of removed ids.
// It is safe for concurrent use. The zero value is an empty roster that has
// not been loaded.
type Roster struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	removed map[string]struct{}
	pending map[string]struct{}
	epoch   uint64
	loaded  bool
}

// New creates a roster seeded with entries. Invalid and duplicate entries are
// dropped.
func New(entries []Entry) *Roster {
	r := &Roster{}
	r.Replace(entries)
	return r
}

// Replace swaps the membership for a freshly fetched set of entries and
// clears the removed set.
func (r *Roster) Replace(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make([]Entry, 0, len(entries))
	r.index = make(map[string]int, len(entries))
	r.removed = make(map[string]struct{})
	r.pending = make(map[string]struct{})
	r.epoch++
	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		if _, dup := r.index[e.ID]; dup {
			continue
		}
		r.index[e.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	r.loaded = true
}

// Loaded reports whether Replace has been called at least once.
func (r *Roster) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Reset forgets every entry.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.index = nil
	r.removed = nil
	r.pending = nil
	r.epoch++
	r.loaded = false
}

// Get returns the entry with id.
func (r *Roster) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// IsRemoved reports whether id has been removed.
func (r *Roster) IsRemoved(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.removed[id]
	return ok
}

// IsActive reports whether id is a member that has not been removed.
func (r *Roster) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.index[id]; !ok {
		return false
	}
	_, gone := r.removed[id]
	return !gone
}

// ActiveCount returns the number of entries that have not been removed.
func (r *Roster) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) - len(r.removed)
}

// CanRemove reports whether removing one more entry keeps at least MinActive
// active entries. Reserved removals count as done.
func (r *Roster) CanRemove() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)-len(r.removed)-len(r.pending) > MinActive
}

// ReserveStatus is the outcome of Reserve
type ReserveStatus int

const (
	// Reserved means the caller holds the removal slot for the id
	Reserved ReserveStatus = iota
	// UnknownEntry means the id is not a member of the roster
	UnknownEntry
	// AlreadyRemoved means the id is removed or has a removal in flight
	AlreadyRemoved
	// BelowMinimum means the removal would leave fewer than MinActive entries
	BelowMinimum
)

// Reserve claims the removal of id before the host is asked to confirm it.
// With status Reserved the caller must call commit exactly once: true marks
// the entry removed, false releases the slot. A commit after Replace or Reset
// is a no-op.
func (r *Roster) Reserve(id string) (commit func(confirmed bool), status ReserveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; !ok {
		return nil, UnknownEntry
	}
	if _, gone := r.removed[id]; gone {
		return nil, AlreadyRemoved
	}
	if _, inFlight := r.pending[id]; inFlight {
		return nil, AlreadyRemoved
	}
	if len(r.entries)-len(r.removed)-len(r.pending) <= MinActive {
		return nil, BelowMinimum
	}
	r.pending[id] = struct{}{}
	epoch := r.epoch

	var once sync.Once
	return func(confirmed bool) {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.epoch != epoch {
				return
			}
			delete(r.pending, id)
			if confirmed {
				r.removed[id] = struct{}{}
			}
		})
	}, Reserved
}

// MarkRemoved flags id as removed. It returns false when id is unknown or
// already removed.
func (r *Roster) MarkRemoved(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; !ok {
		return false
	}
	if _, gone := r.removed[id]; gone {
		return false
	}
	r.removed[id] = struct{}{}
	return true
}

// Entries returns a copy of all entries in arrival order, removed included.
func (r *Roster) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Active returns a copy of the entries that have not been removed.
func (r *Roster) Active() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries)-len(r.removed))
	for _, e := range r.entries {
		if _, gone := r.removed[e.ID]; gone {
			continue
		}
		out = append(out, e)
	}
	return out
}
