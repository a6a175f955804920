package area

import "fmt"

// InvariantError reports pool or map corruption. It is raised with panic and
// must not be recovered by callers: continuing would hand out wrong
// visibility decisions.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("area: invariant violated in %s: %s", e.Op, e.Detail)
}

func fault(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// mix is the splitmix64 finalizer. Element hashes are mixed before being
// summed into the order-independent content hash of a set.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Pool interns sets of actors by content and counts how many cells reference
// each interned set. Sets live in a generational arena; a set whose count
// reaches zero is evicted immediately and its slot generation is bumped.
//
// Pool is not safe for concurrent use. Several Maps may share one Pool as
// long as they are driven from the same goroutine.
type Pool[E comparable] struct {
	hash func(E) uint64

	slots       []*Set[E]
	generations []uint32
	freeList    []uint32

	byHash map[uint64][]*Set[E]
	live   int
}

// NewPool creates a pool. hash must be stable for equal actors.
func NewPool[E comparable](hash func(E) uint64) *Pool[E] {
	return &Pool[E]{
		hash:        hash,
		slots:       make([]*Set[E], 0, 128),
		generations: make([]uint32, 0, 128),
		freeList:    make([]uint32, 0, 32),
		byHash:      make(map[uint64][]*Set[E], 128),
	}
}

// Len returns the number of live interned sets.
func (p *Pool[E]) Len() int { return p.live }

// NewSingleton returns a private set holding only e. It is never interned or
// counted; owners keep one per actor and reuse it for every cell the actor
// is the first to enter.
func (p *Pool[E]) NewSingleton(e E) *Set[E] {
	s := newSet([]E{e}, mix(p.hash(e)))
	s.refs = permanent
	return s
}

// Live reports whether s is still interned (or is a private set).
func (p *Pool[E]) Live(s *Set[E]) bool {
	if s.Permanent() {
		return true
	}
	return s.handle != 0 && p.resolve(s.handle) == s
}

// WithAdded returns the canonical set cur ∪ {e}, moving one reference from
// cur to the result.
func (p *Pool[E]) WithAdded(cur *Set[E], e E) *Set[E] {
	if cur.Contains(e) {
		fault("WithAdded", "%v already contains %v", cur, e)
	}
	size := cur.Len() + 1

	if next := p.resolve(cur.addNext); next != nil && next.Len() == size && next.Contains(e) {
		p.incRef(next)
		p.decRef(cur)
		return next
	}

	hash := cur.hash + mix(p.hash(e))
	next := p.find(hash, func(c *Set[E]) bool {
		return c.Len() == size && c.Contains(e) && c.containsAllExcept(cur, e, false)
	})
	if next == nil {
		members := make([]E, 0, size)
		members = append(members, cur.members...)
		members = append(members, e)
		next = p.intern(members, hash)
	} else {
		p.incRef(next)
	}
	if next == cur {
		fault("WithAdded", "lookup for %v + %v returned the input set", cur, e)
	}
	cur.addNext = next.handle
	p.decRef(cur)
	return next
}

// WithRemoved returns the canonical set cur \ {e}, moving one reference from
// cur to the result. It returns nil when cur holds only e: empty cells are
// never stored.
func (p *Pool[E]) WithRemoved(cur *Set[E], e E) *Set[E] {
	if !cur.Contains(e) {
		fault("WithRemoved", "%v does not contain %v", cur, e)
	}
	if cur.Len() == 1 {
		p.decRef(cur)
		return nil
	}
	size := cur.Len() - 1

	if next := p.resolve(cur.removeNext); next != nil && next.Len() == size && !next.Contains(e) {
		p.incRef(next)
		p.decRef(cur)
		return next
	}

	hash := cur.hash - mix(p.hash(e))
	next := p.find(hash, func(c *Set[E]) bool {
		return c.Len() == size && !c.Contains(e) && c.containsAllExcept(cur, e, true)
	})
	if next == nil {
		members := make([]E, 0, size)
		for _, m := range cur.members {
			if m != e {
				members = append(members, m)
			}
		}
		next = p.intern(members, hash)
	} else {
		p.incRef(next)
	}
	if next == cur {
		fault("WithRemoved", "lookup for %v - %v returned the input set", cur, e)
	}
	cur.removeNext = next.handle
	p.decRef(cur)
	return next
}

func (p *Pool[E]) find(hash uint64, match func(*Set[E]) bool) *Set[E] {
	for _, c := range p.byHash[hash] {
		if match(c) {
			return c
		}
	}
	return nil
}

func (p *Pool[E]) resolve(h Handle) *Set[E] {
	if h == 0 {
		return nil
	}
	slot := h.slot()
	if int(slot) >= len(p.slots) || p.generations[slot] != h.generation() {
		return nil
	}
	return p.slots[slot]
}

func (p *Pool[E]) intern(members []E, hash uint64) *Set[E] {
	s := newSet(members, hash)
	s.refs = 1

	var slot uint32
	if n := len(p.freeList); n > 0 {
		slot = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.slots[slot] = s
	} else {
		slot = uint32(len(p.slots))
		p.slots = append(p.slots, s)
		p.generations = append(p.generations, 1)
	}
	s.handle = newHandle(slot, p.generations[slot])
	p.byHash[hash] = append(p.byHash[hash], s)
	p.live++
	return s
}

func (p *Pool[E]) evict(s *Set[E]) {
	bucket := p.byHash[s.hash]
	for i, c := range bucket {
		if c == s {
			bucket[i] = bucket[len(bucket)-1]
			bucket[len(bucket)-1] = nil
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(p.byHash, s.hash)
	} else {
		p.byHash[s.hash] = bucket
	}

	slot := s.handle.slot()
	p.slots[slot] = nil
	p.generations[slot]++
	if p.generations[slot] == 0 {
		p.generations[slot] = 1
	}
	p.freeList = append(p.freeList, slot)
	s.handle = 0
	p.live--
}

func (p *Pool[E]) incRef(s *Set[E]) {
	if s.refs != permanent {
		s.refs++
	}
}

func (p *Pool[E]) decRef(s *Set[E]) {
	if s.refs == permanent {
		return
	}
	if s.refs <= 0 || s.handle == 0 {
		fault("decRef", "cannot release %v", s)
	}
	s.refs--
	if s.refs == 0 {
		p.evict(s)
	}
}
