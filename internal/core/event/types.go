package event

import "github.com/l1jgo/interest/internal/core/ecs"

// ChunkEntered fires when a chunk comes into a viewer's view square.
type ChunkEntered struct {
	Viewer ecs.EntityID
	X, Z   int32
}

// ChunkExited fires when a chunk leaves a viewer's view square.
type ChunkExited struct {
	Viewer ecs.EntityID
	X, Z   int32
}

// AnchorMoved fires when a viewer's anchor chunk changes.
type AnchorMoved struct {
	Viewer       ecs.EntityID
	FromX, FromZ int32
	ToX, ToZ     int32
}

type ViewerJoined struct {
	Viewer ecs.EntityID
	Name   string
	Bot    bool
}

// ViewerLeft carries the viewer's final state so it can be saved after the
// entity is gone.
type ViewerLeft struct {
	Viewer       ecs.EntityID
	Name         string
	Bot          bool
	Saved        bool // persisted state already matches
	X, Z         int32
	ViewDistance int // requested, not effective
}

// TicketAdded fires when a chunk gains its first ticket holder.
type TicketAdded struct {
	X, Z int32
}

// TicketRemoved fires when a chunk loses its last ticket holder.
type TicketRemoved struct {
	X, Z int32
}
