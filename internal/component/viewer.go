package component

// Position is the viewer's anchor in chunk coordinates.
type Position struct {
	X int32
	Z int32
}

// View holds the requested and the effective (policy-clamped) view distance.
// Distances are Chebyshev radii in chunks.
type View struct {
	Requested int
	Effective int
}

// Viewer stores identity and bookkeeping for a tracked entity.
// Pure data, zero methods. Mutations happen in systems.
type Viewer struct {
	Name string
	Bot  bool

	Dirty bool // position or view changed since the last tracking pass
	Saved bool // persisted state matches the live state
}

// Wander makes a bot drift around its home chunk.
type Wander struct {
	HomeX int32
	HomeZ int32
	Range int
}
