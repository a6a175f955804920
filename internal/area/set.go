package area

import "fmt"

// Handle addresses an interned set inside a Pool. It encodes a 32-bit arena
// slot in the lower bits and a 32-bit generation in the upper bits. The
// generation changes when the slot is freed, so a stale handle never resolves.
// The zero Handle never resolves.
type Handle uint64

func newHandle(slot, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot))
}

func (h Handle) slot() uint32       { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

// permanent is the refcount of a private single-actor set.
const permanent = -1

// indexThreshold is the size above which a set keeps a lookup map next to
// its member slice.
const indexThreshold = 8

// Set is one combination of actors covering some cells. Its members never
// change while it is referenced; adding or removing an actor always yields a
// different Set. Callers must treat a Set as a snapshot.
type Set[E comparable] struct {
	members []E
	index   map[E]struct{}
	hash    uint64
	refs    int32
	handle  Handle

	// One-entry transition caches. They hold only the target's handle, so
	// they never keep an evicted set or a departed actor reachable.
	addNext    Handle
	removeNext Handle
}

func newSet[E comparable](members []E, hash uint64) *Set[E] {
	s := &Set[E]{members: members, hash: hash}
	if len(members) > indexThreshold {
		s.index = make(map[E]struct{}, len(members))
		for _, m := range members {
			s.index[m] = struct{}{}
		}
	}
	return s
}

// Len returns the number of actors in the set.
func (s *Set[E]) Len() int { return len(s.members) }

// Contains reports whether e is a member.
func (s *Set[E]) Contains(e E) bool {
	if s.index != nil {
		_, ok := s.index[e]
		return ok
	}
	for _, m := range s.members {
		if m == e {
			return true
		}
	}
	return false
}

// Each calls fn for every member in insertion order.
func (s *Set[E]) Each(fn func(E)) {
	for _, m := range s.members {
		fn(m)
	}
}

// Members returns a copy of the members in insertion order.
func (s *Set[E]) Members() []E {
	out := make([]E, len(s.members))
	copy(out, s.members)
	return out
}

// Refs returns the number of cells referencing the set, or -1 for a private
// single-actor set.
func (s *Set[E]) Refs() int { return int(s.refs) }

// Permanent reports whether s is a private single-actor set that the pool
// neither interns nor counts.
func (s *Set[E]) Permanent() bool { return s.refs == permanent }

func (s *Set[E]) String() string {
	return fmt.Sprintf("set{size=%d refs=%d handle=%#x hash=%#x}", len(s.members), s.refs, uint64(s.handle), s.hash)
}

// containsAllExcept reports whether every member of other, except skip when
// hasSkip is set, is a member of s.
func (s *Set[E]) containsAllExcept(other *Set[E], skip E, hasSkip bool) bool {
	for _, m := range other.members {
		if hasSkip && m == skip {
			continue
		}
		if !s.Contains(m) {
			return false
		}
	}
	return true
}
