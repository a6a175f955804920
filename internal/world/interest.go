package world

import (
	"github.com/l1jgo/interest/internal/area"
	"github.com/l1jgo/interest/internal/core/ecs"
	"github.com/l1jgo/interest/internal/core/event"
	"github.com/l1jgo/interest/internal/net/packet"
	"go.uber.org/zap"
)

// Interest runs two area maps over one shared pool: the view map tracks which
// chunks each viewer sees, the ticket map keeps chunks around the view square
// loaded. A chunk holds a ticket while at least one viewer's ticket square
// covers it.
type Interest struct {
	state        *State
	pool         *area.Pool[ecs.EntityID]
	view         *area.Map[ecs.EntityID]
	tickets      *area.Map[ecs.EntityID]
	ticketOffset int
}

func newInterest(s *State, ticketOffset int, log *zap.Logger) *Interest {
	in := &Interest{
		state:        s,
		pool:         area.NewPool(ecs.Hash),
		ticketOffset: ticketOffset,
	}
	in.view = area.New(in.pool, area.Options[ecs.EntityID]{
		Name:      "view",
		OnEnter:   in.onViewEnter,
		OnExit:    in.onViewExit,
		OnMove:    in.onViewMove,
		Singleton: in.singleton,
		Log:       log,
	})
	in.tickets = area.New(in.pool, area.Options[ecs.EntityID]{
		Name:      "tickets",
		OnEnter:   in.onTicketEnter,
		OnExit:    in.onTicketExit,
		Singleton: in.singleton,
		Log:       log,
	})
	return in
}

// singleton hands both maps the same private set per viewer; it is dropped
// with the entity's components.
func (in *Interest) singleton(id ecs.EntityID) *area.Set[ecs.EntityID] {
	if s, ok := in.state.Singletons.Get(id); ok {
		return s
	}
	s := in.pool.NewSingleton(id)
	in.state.Singletons.Set(id, s)
	return s
}

func (in *Interest) track(id ecs.EntityID, x, z int32, radius int) {
	in.view.AddOrUpdate(id, x, z, radius)
	in.tickets.AddOrUpdate(id, x, z, radius+in.ticketOffset)
}

func (in *Interest) untrack(id ecs.EntityID) {
	in.view.Remove(id)
	in.tickets.Remove(id)
}

func (in *Interest) onViewEnter(c area.Change[ecs.EntityID]) {
	x, z := c.Cell.X(), c.Cell.Z()
	in.state.queue(c.Actor, packet.ChunkEnter(x, z))
	event.Emit(in.state.Bus, event.ChunkEntered{Viewer: c.Actor, X: x, Z: z})
}

func (in *Interest) onViewExit(c area.Change[ecs.EntityID]) {
	x, z := c.Cell.X(), c.Cell.Z()
	in.state.queue(c.Actor, packet.ChunkExit(x, z))
	event.Emit(in.state.Bus, event.ChunkExited{Viewer: c.Actor, X: x, Z: z})
}

func (in *Interest) onViewMove(id ecs.EntityID, from, to area.Key) {
	in.state.queue(id, packet.NewViewCenter(to.X(), to.Z()))
	event.Emit(in.state.Bus, event.AnchorMoved{
		Viewer: id,
		FromX:  from.X(),
		FromZ:  from.Z(),
		ToX:    to.X(),
		ToZ:    to.Z(),
	})
}

func (in *Interest) onTicketEnter(c area.Change[ecs.EntityID]) {
	if c.State.Len() == 1 {
		event.Emit(in.state.Bus, event.TicketAdded{X: c.Cell.X(), Z: c.Cell.Z()})
	}
}

func (in *Interest) onTicketExit(c area.Change[ecs.EntityID]) {
	if c.State == nil {
		event.Emit(in.state.Bus, event.TicketRemoved{X: c.Cell.X(), Z: c.Cell.Z()})
	}
}

// ViewersOf returns the viewers whose view square covers chunk (x, z).
func (in *Interest) ViewersOf(x, z int32) []ecs.EntityID {
	s := in.view.At(x, z)
	if s == nil {
		return nil
	}
	return s.Members()
}

// Sees reports whether a viewer currently has chunk (x, z) in view.
func (in *Interest) Sees(id ecs.EntityID, x, z int32) bool {
	s := in.view.At(x, z)
	return s != nil && s.Contains(id)
}

// Ticketed reports whether chunk (x, z) holds a ticket.
func (in *Interest) Ticketed(x, z int32) bool {
	return in.tickets.At(x, z) != nil
}

// TicketHolders returns how many viewers keep chunk (x, z) loaded.
func (in *Interest) TicketHolders(x, z int32) int {
	if s := in.tickets.At(x, z); s != nil {
		return s.Len()
	}
	return 0
}

// Anchor returns the viewer's anchor chunk as last applied to the view map.
func (in *Interest) Anchor(id ecs.EntityID) (x, z int32, ok bool) {
	k, ok := in.view.LastAnchor(id)
	if !ok {
		return 0, 0, false
	}
	return k.X(), k.Z(), true
}

// Radius returns the view radius last applied to the view map.
func (in *Interest) Radius(id ecs.EntityID) (int, bool) {
	return in.view.LastRadius(id)
}

// Stats is a point-in-time view of the interest maps.
type Stats struct {
	Viewers     int `json:"viewers"`
	ViewCells   int `json:"view_cells"`
	TicketCells int `json:"ticket_cells"`
	PooledSets  int `json:"pooled_sets"`
}

func (in *Interest) Stats() Stats {
	return Stats{
		Viewers:     in.view.Actors(),
		ViewCells:   in.view.Len(),
		TicketCells: in.tickets.Len(),
		PooledSets:  in.pool.Len(),
	}
}
