package component

// SessionRef links a viewer entity to its observer session.
// This is a reference, not the session itself. The session lives in net/.
// Bot viewers have no SessionRef.
type SessionRef struct {
	SessionID uint64
}

// Outbox collects observer messages produced while the interest maps update.
// OutputSystem moves them to the session each tick.
type Outbox struct {
	Messages []any
}
