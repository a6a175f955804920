package area

import (
	"go.uber.org/zap"
)

// Change describes one cell-level transition for one actor.
type Change[E comparable] struct {
	Actor E
	Cell  Key
	// Anchor is the actor's anchor after the operation, Unmapped on removal.
	Anchor Key
	// Previous is the actor's anchor before the operation, Unmapped on add.
	Previous Key
	// State is the cell's set after the transition; nil when the cell became
	// empty. It is a snapshot and stays valid after the callback returns.
	State *Set[E]
}

// ChangeFunc receives cell-level transitions.
type ChangeFunc[E comparable] func(Change[E])

// MoveFunc receives an actor's anchor change after all of its cell-level
// transitions for one update have fired.
type MoveFunc[E comparable] func(actor E, from, to Key)

// Options configures a Map. Every field is optional.
type Options[E comparable] struct {
	Name string

	OnEnter ChangeFunc[E]
	OnExit  ChangeFunc[E]
	OnMove  MoveFunc[E]

	// Singleton supplies the private single-actor set of an actor. It must
	// return the same instance for the same actor until the actor is removed.
	// When nil the Map keeps its own per-actor singletons.
	Singleton func(E) *Set[E]

	Log *zap.Logger
}

type region struct {
	anchor Key
	radius int
}

// Map tracks, for every actor, the square of cells within a Chebyshev radius
// of its anchor, and for every cell the set of actors covering it.
//
// Map is driven from a single goroutine. Callbacks run synchronously while
// the map is mid-update and must not call back into the same Map.
type Map[E comparable] struct {
	pool    *Pool[E]
	cells   map[Key]*Set[E]
	regions map[E]region
	own     map[E]*Set[E]
	opts    Options[E]
	log     *zap.Logger
}

// New creates an empty Map backed by pool.
func New[E comparable](pool *Pool[E], opts Options[E]) *Map[E] {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Name != "" {
		log = log.With(zap.String("area_map", opts.Name))
	}
	return &Map[E]{
		pool:    pool,
		cells:   make(map[Key]*Set[E], 1024),
		regions: make(map[E]region),
		own:     make(map[E]*Set[E]),
		opts:    opts,
		log:     log,
	}
}

// Len returns the number of mapped cells.
func (m *Map[E]) Len() int { return len(m.cells) }

// Actors returns the number of tracked actors.
func (m *Map[E]) Actors() int { return len(m.regions) }

// Tracked reports whether e currently has a region.
func (m *Map[E]) Tracked(e E) bool {
	_, ok := m.regions[e]
	return ok
}

// At returns the actors covering chunk (x, z), or nil.
func (m *Map[E]) At(x, z int32) *Set[E] { return m.cells[Pack(x, z)] }

// AtKey returns the actors covering the chunk at k, or nil.
func (m *Map[E]) AtKey(k Key) *Set[E] { return m.cells[k] }

// Each calls fn for every mapped cell. fn must not modify the Map.
func (m *Map[E]) Each(fn func(Key, *Set[E])) {
	for k, s := range m.cells {
		fn(k, s)
	}
}

// LastAnchor returns the anchor e was last given.
func (m *Map[E]) LastAnchor(e E) (Key, bool) {
	r, ok := m.regions[e]
	if !ok {
		return Unmapped, false
	}
	return r.anchor, true
}

// LastRadius returns the radius e was last given.
func (m *Map[E]) LastRadius(e E) (int, bool) {
	r, ok := m.regions[e]
	if !ok {
		return -1, false
	}
	return r.radius, true
}

// Add starts tracking e with the square of the given radius around (x, z).
// It returns false if e is already tracked or radius is negative.
func (m *Map[E]) Add(e E, x, z int32, radius int) bool {
	if radius < 0 {
		return false
	}
	if _, ok := m.regions[e]; ok {
		return false
	}
	m.add(e, x, z, radius)
	return true
}

// Remove stops tracking e and clears it from every cell of its square.
// It returns false if e is not tracked.
func (m *Map[E]) Remove(e E) bool {
	r, ok := m.regions[e]
	if !ok {
		return false
	}
	delete(m.regions, e)
	x, z := int(r.anchor.X()), int(r.anchor.Z())
	m.removeSquare(e, x, z, r.radius, Unmapped, r.anchor)
	delete(m.own, e)
	return true
}

// Update moves e's square to the given anchor and radius, firing enter and
// exit callbacks only for cells whose membership changes. It returns false
// if e is not tracked or radius is negative.
func (m *Map[E]) Update(e E, x, z int32, radius int) bool {
	if radius < 0 {
		return false
	}
	r, ok := m.regions[e]
	if !ok {
		return false
	}
	m.update(e, r, x, z, radius)
	return true
}

// AddOrUpdate adds e if it is untracked and updates it otherwise. A negative
// radius is treated as 0.
func (m *Map[E]) AddOrUpdate(e E, x, z int32, radius int) {
	radius = max(radius, 0)
	if r, ok := m.regions[e]; ok {
		m.update(e, r, x, z, radius)
		return
	}
	m.add(e, x, z, radius)
}

func (m *Map[E]) add(e E, x, z int32, radius int) {
	anchor := Pack(x, z)
	m.regions[e] = region{anchor: anchor, radius: radius}
	m.addSquare(e, int(x), int(z), radius, anchor, Unmapped)
}

func (m *Map[E]) update(e E, old region, x, z int32, radius int) {
	to := Pack(x, z)
	m.regions[e] = region{anchor: to, radius: radius}
	m.diff(e, old.anchor, to, old.radius, radius)
	if to != old.anchor && m.opts.OnMove != nil {
		m.fireMove(e, old.anchor, to)
	}
}

// diff applies the transition from the square (from, oldR) to (to, newR).
func (m *Map[E]) diff(e E, from, to Key, oldR, newR int) {
	fromX, fromZ := int(from.X()), int(from.Z())
	toX, toZ := int(to.X()), int(to.Z())
	dx, dz := toX-fromX, toZ-fromZ

	if max(abs(dx), abs(dz)) > 2*max(oldR, newR) {
		// Teleport: the squares cannot share enough cells to be worth diffing.
		m.removeSquare(e, fromX, fromZ, oldR, to, from)
		m.addSquare(e, toX, toZ, newR, to, from)
		return
	}

	if oldR != newR {
		for cx := fromX - oldR; cx <= fromX+oldR; cx++ {
			for cz := fromZ - oldR; cz <= fromZ+oldR; cz++ {
				if chebyshev(cx, cz, toX, toZ) > newR {
					m.removeFrom(e, cx, cz, to, from)
				}
			}
		}
		for cx := toX - newR; cx <= toX+newR; cx++ {
			for cz := toZ - newR; cz <= toZ+newR; cz++ {
				if chebyshev(cx, cz, fromX, fromZ) > oldR {
					m.addTo(e, cx, cz, to, from)
				}
			}
		}
		return
	}

	if dx == 0 && dz == 0 {
		return
	}

	// Same radius, pure translation. The symmetric difference of the two
	// squares is at most four strips: entered along the leading X and Z
	// edges, exited along the trailing ones. The X strips span only the Z
	// range both squares share so the corners are visited once, by the Z
	// strips. Lower bounds are inclusive, upper bounds exclusive, and each
	// axis walks in the direction of movement.
	r := oldR
	right, up := 1, 1
	if dx < 0 {
		right = -1
	}
	if dz < 0 {
		up = -1
	}

	if dx != 0 {
		m.strip(e, true, to, from,
			fromX+r*right+right, toX+r*right+right, right,
			toZ-r*up, fromZ+r*up+up, up)
	}
	if dz != 0 {
		m.strip(e, true, to, from,
			toX-r*right, toX+r*right+right, right,
			fromZ+r*up+up, toZ+r*up+up, up)
	}
	if dx != 0 {
		m.strip(e, false, to, from,
			fromX-r*right, toX-r*right, right,
			toZ-r*up, fromZ+r*up+up, up)
	}
	if dz != 0 {
		m.strip(e, false, to, from,
			fromX-r*right, fromX+r*right+right, right,
			fromZ-r*up, toZ-r*up, up)
	}
}

// strip walks the rectangle [x0, x1) x [z0, z1) stepping by sx and sz.
func (m *Map[E]) strip(e E, enter bool, anchor, previous Key, x0, x1, sx, z0, z1, sz int) {
	if (x1-x0)*sx <= 0 || (z1-z0)*sz <= 0 {
		return
	}
	for cx := x0; cx != x1; cx += sx {
		for cz := z0; cz != z1; cz += sz {
			if enter {
				m.addTo(e, cx, cz, anchor, previous)
			} else {
				m.removeFrom(e, cx, cz, anchor, previous)
			}
		}
	}
}

func (m *Map[E]) addSquare(e E, x, z, radius int, anchor, previous Key) {
	for cx := x - radius; cx <= x+radius; cx++ {
		for cz := z - radius; cz <= z+radius; cz++ {
			m.addTo(e, cx, cz, anchor, previous)
		}
	}
}

func (m *Map[E]) removeSquare(e E, x, z, radius int, anchor, previous Key) {
	for cx := x - radius; cx <= x+radius; cx++ {
		for cz := z - radius; cz <= z+radius; cz++ {
			m.removeFrom(e, cx, cz, anchor, previous)
		}
	}
}

func (m *Map[E]) addTo(e E, x, z int, anchor, previous Key) {
	key := Pack(int32(x), int32(z))
	var next *Set[E]
	if cur, ok := m.cells[key]; ok {
		next = m.pool.WithAdded(cur, e)
		if next == cur {
			fault("addTo", "expected a different set than %v for (%d, %d)", next, x, z)
		}
	} else {
		next = m.singleton(e)
	}
	m.cells[key] = next

	if m.opts.OnEnter != nil {
		m.fire(m.opts.OnEnter, "enter", Change[E]{Actor: e, Cell: key, Anchor: anchor, Previous: previous, State: next})
	}
}

func (m *Map[E]) removeFrom(e E, x, z int, anchor, previous Key) {
	key := Pack(int32(x), int32(z))
	cur, ok := m.cells[key]
	if !ok {
		fault("removeFrom", "no set at (%d, %d) while removing %v", x, z, e)
	}
	next := m.pool.WithRemoved(cur, e)
	if next == cur {
		fault("removeFrom", "set %v at (%d, %d) should have contained %v", next, x, z, e)
	}
	if next == nil {
		delete(m.cells, key)
	} else {
		m.cells[key] = next
	}

	if m.opts.OnExit != nil {
		m.fire(m.opts.OnExit, "exit", Change[E]{Actor: e, Cell: key, Anchor: anchor, Previous: previous, State: next})
	}
}

func (m *Map[E]) singleton(e E) *Set[E] {
	if m.opts.Singleton != nil {
		return m.opts.Singleton(e)
	}
	s, ok := m.own[e]
	if !ok {
		s = m.pool.NewSingleton(e)
		m.own[e] = s
	}
	return s
}

func (m *Map[E]) fire(fn ChangeFunc[E], transition string, c Change[E]) {
	defer m.recoverCallback(transition, c.Actor, c.Cell, c.Anchor, c.Previous)
	fn(c)
}

func (m *Map[E]) fireMove(e E, from, to Key) {
	defer m.recoverCallback("move", e, Unmapped, to, from)
	m.opts.OnMove(e, from, to)
}

// recoverCallback logs and drops a panicking callback. Invariant faults are
// re-raised.
func (m *Map[E]) recoverCallback(transition string, e E, cell, anchor, previous Key) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InvariantError); ok {
		panic(ie)
	}
	fields := []zap.Field{
		zap.String("transition", transition),
		zap.Any("actor", e),
		zap.Any("panic", r),
		zap.Stack("stack"),
	}
	if cell != Unmapped {
		fields = append(fields, zap.Int32("cell_x", cell.X()), zap.Int32("cell_z", cell.Z()))
	}
	if anchor != Unmapped {
		fields = append(fields, zap.Int32("anchor_x", anchor.X()), zap.Int32("anchor_z", anchor.Z()))
	}
	if previous != Unmapped {
		fields = append(fields, zap.Int32("previous_x", previous.X()), zap.Int32("previous_z", previous.Z()))
	}
	m.log.Error("area map callback failed", fields...)
}
