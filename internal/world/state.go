package world

import (
	"errors"
	"sort"

	"github.com/l1jgo/interest/internal/area"
	"github.com/l1jgo/interest/internal/component"
	"github.com/l1jgo/interest/internal/config"
	"github.com/l1jgo/interest/internal/core/ecs"
	"github.com/l1jgo/interest/internal/core/event"
	"go.uber.org/zap"
)

// ErrNameTaken is returned when a viewer name is already in the world.
var ErrNameTaken = errors.New("viewer name already in use")

// ViewerSpec describes a viewer to spawn.
type ViewerSpec struct {
	Name         string
	X, Z         int32
	Requested    int // requested view distance
	Effective    int // after the view-distance policy
	Bot          bool
	WanderRange  int    // bots only; 0 = stationary
	SessionID    uint64 // 0 for bots
	AlreadySaved bool   // restored from the database unchanged
}

// State holds the viewer entities and the interest maps over them.
// Accessed only from the game loop goroutine, no locks.
type State struct {
	ECS *ecs.World
	Bus *event.Bus

	Positions  *ecs.PtrComponentStore[component.Position]
	Views      *ecs.PtrComponentStore[component.View]
	Viewers    *ecs.PtrComponentStore[component.Viewer]
	Sessions   *ecs.PtrComponentStore[component.SessionRef]
	Outboxes   *ecs.PtrComponentStore[component.Outbox]
	Wanderers  *ecs.PtrComponentStore[component.Wander]
	Singletons *ecs.PtrComponentStore[area.Set[ecs.EntityID]]

	bySession map[uint64]ecs.EntityID
	byName    map[string]ecs.EntityID

	interest *Interest
	log      *zap.Logger
}

func NewState(cfg config.ViewConfig, log *zap.Logger) *State {
	s := &State{
		ECS:        ecs.NewWorld(),
		Bus:        event.NewBus(),
		Positions:  ecs.NewPtrComponentStore[component.Position](),
		Views:      ecs.NewPtrComponentStore[component.View](),
		Viewers:    ecs.NewPtrComponentStore[component.Viewer](),
		Sessions:   ecs.NewPtrComponentStore[component.SessionRef](),
		Outboxes:   ecs.NewPtrComponentStore[component.Outbox](),
		Wanderers:  ecs.NewPtrComponentStore[component.Wander](),
		Singletons: ecs.NewPtrComponentStore[area.Set[ecs.EntityID]](),
		bySession:  make(map[uint64]ecs.EntityID),
		byName:     make(map[string]ecs.EntityID),
		log:        log,
	}
	s.ECS.Register(s.Positions)
	s.ECS.Register(s.Views)
	s.ECS.Register(s.Viewers)
	s.ECS.Register(s.Sessions)
	s.ECS.Register(s.Outboxes)
	s.ECS.Register(s.Wanderers)
	s.ECS.Register(s.Singletons)

	s.interest = newInterest(s, cfg.TicketOffset, log)
	s.ECS.OnDestroy(s.onDestroy)
	return s
}

// Interest exposes the view and ticket maps.
func (s *State) Interest() *Interest { return s.interest }

// SpawnViewer creates a viewer entity. It is tracked by the interest maps on
// the next tracking pass.
func (s *State) SpawnViewer(spec ViewerSpec) (ecs.EntityID, error) {
	if _, ok := s.byName[spec.Name]; ok {
		return 0, ErrNameTaken
	}
	id := s.ECS.CreateEntity()
	s.Positions.Set(id, &component.Position{X: spec.X, Z: spec.Z})
	s.Views.Set(id, &component.View{Requested: spec.Requested, Effective: spec.Effective})
	s.Viewers.Set(id, &component.Viewer{
		Name:  spec.Name,
		Bot:   spec.Bot,
		Dirty: true,
		Saved: spec.AlreadySaved,
	})
	if spec.Bot && spec.WanderRange > 0 {
		s.Wanderers.Set(id, &component.Wander{HomeX: spec.X, HomeZ: spec.Z, Range: spec.WanderRange})
	}
	if spec.SessionID != 0 {
		s.Sessions.Set(id, &component.SessionRef{SessionID: spec.SessionID})
		s.Outboxes.Set(id, &component.Outbox{})
		s.bySession[spec.SessionID] = id
	}
	s.byName[spec.Name] = id
	event.Emit(s.Bus, event.ViewerJoined{Viewer: id, Name: spec.Name, Bot: spec.Bot})
	return id, nil
}

// MoveViewer sets a viewer's anchor chunk. Returns false for unknown entities.
func (s *State) MoveViewer(id ecs.EntityID, x, z int32) bool {
	pos, ok := s.Positions.Get(id)
	if !ok {
		return false
	}
	if pos.X == x && pos.Z == z {
		return true
	}
	pos.X, pos.Z = x, z
	s.markDirty(id)
	return true
}

// SetViewDistance records the requested and effective view distance.
func (s *State) SetViewDistance(id ecs.EntityID, requested, effective int) bool {
	v, ok := s.Views.Get(id)
	if !ok {
		return false
	}
	if v.Requested == requested && v.Effective == effective {
		return true
	}
	v.Requested, v.Effective = requested, effective
	s.markDirty(id)
	return true
}

func (s *State) markDirty(id ecs.EntityID) {
	if v, ok := s.Viewers.Get(id); ok {
		v.Dirty = true
		v.Saved = false
	}
}

// DespawnViewer queues a viewer for removal at the end of the tick.
func (s *State) DespawnViewer(id ecs.EntityID) {
	if s.ECS.Alive(id) {
		s.ECS.MarkForDestruction(id)
	}
}

func (s *State) onDestroy(id ecs.EntityID) {
	s.interest.untrack(id)

	v, ok := s.Viewers.Get(id)
	if !ok {
		return
	}
	left := event.ViewerLeft{Viewer: id, Name: v.Name, Bot: v.Bot, Saved: v.Saved}
	if pos, ok := s.Positions.Get(id); ok {
		left.X, left.Z = pos.X, pos.Z
	}
	if view, ok := s.Views.Get(id); ok {
		left.ViewDistance = view.Requested
	}
	event.Emit(s.Bus, left)

	delete(s.byName, v.Name)
	if ref, ok := s.Sessions.Get(id); ok {
		delete(s.bySession, ref.SessionID)
	}
}

// BySession returns the viewer owned by an observer session.
func (s *State) BySession(sessionID uint64) (ecs.EntityID, bool) {
	id, ok := s.bySession[sessionID]
	return id, ok
}

// ByName returns the viewer with the given name.
func (s *State) ByName(name string) (ecs.EntityID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// ViewerCount returns the number of live viewers.
func (s *State) ViewerCount() int { return s.Viewers.Len() }

// ViewerIDs returns all live viewers in ascending ID order.
func (s *State) ViewerIDs() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, s.Viewers.Len())
	s.Viewers.Each(func(id ecs.EntityID, _ *component.Viewer) {
		ids = append(ids, id)
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Track applies a viewer's current position and effective view distance to
// the interest maps and clears its dirty flag.
func (s *State) Track(id ecs.EntityID) {
	pos, ok := s.Positions.Get(id)
	if !ok {
		return
	}
	view, ok := s.Views.Get(id)
	if !ok {
		return
	}
	s.interest.track(id, pos.X, pos.Z, view.Effective)
	if v, ok := s.Viewers.Get(id); ok {
		v.Dirty = false
	}
}

// queue appends a message to a viewer's outbox. Bots have no outbox.
func (s *State) queue(id ecs.EntityID, msg any) {
	if box, ok := s.Outboxes.Get(id); ok {
		box.Messages = append(box.Messages, msg)
	}
}

// DrainOutbox returns and clears the queued messages of a viewer.
func (s *State) DrainOutbox(id ecs.EntityID) []any {
	box, ok := s.Outboxes.Get(id)
	if !ok || len(box.Messages) == 0 {
		return nil
	}
	msgs := box.Messages
	box.Messages = nil
	return msgs
}
