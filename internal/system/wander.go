package system

import (
	"time"

	"github.com/l1jgo/interest/internal/component"
	"github.com/l1jgo/interest/internal/core/ecs"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/scripting"
	"github.com/l1jgo/interest/internal/world"
)

// WanderSystem moves bot viewers with the Lua wander_step policy.
// Phase 2 (Update).
type WanderSystem struct {
	world  *world.State
	script *scripting.Engine
	tick   uint64
}

func NewWanderSystem(ws *world.State, script *scripting.Engine) *WanderSystem {
	return &WanderSystem{world: ws, script: script}
}

func (s *WanderSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WanderSystem) Update(_ time.Duration) {
	s.tick++
	s.world.Wanderers.EachSorted(func(id ecs.EntityID, w *component.Wander) {
		pos, ok := s.world.Positions.Get(id)
		if !ok {
			return
		}
		dx, dz := s.script.WanderStep(scripting.WanderContext{
			ID:    uint64(id),
			X:     pos.X,
			Z:     pos.Z,
			HomeX: w.HomeX,
			HomeZ: w.HomeZ,
			Range: w.Range,
			Tick:  s.tick,
		})
		if dx != 0 || dz != 0 {
			s.world.MoveViewer(id, pos.X+dx, pos.Z+dz)
		}
	})
}
