package system

import (
	"time"

	"github.com/l1jgo/interest/internal/component"
	"github.com/l1jgo/interest/internal/core/ecs"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/world"
)

// TrackingSystem applies moved or re-configured viewers to the interest maps,
// once per viewer per tick. Phase 3 (PostUpdate).
type TrackingSystem struct {
	world *world.State
}

func NewTrackingSystem(ws *world.State) *TrackingSystem {
	return &TrackingSystem{world: ws}
}

func (s *TrackingSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *TrackingSystem) Update(_ time.Duration) {
	s.world.Viewers.EachSorted(func(id ecs.EntityID, v *component.Viewer) {
		if v.Dirty {
			s.world.Track(id)
		}
	})
}
