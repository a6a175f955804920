package system

import (
	"time"

	"github.com/l1jgo/interest/internal/component"
	"github.com/l1jgo/interest/internal/core/ecs"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/world"
)

// OutputSystem dispatches last tick's events, moves outbox messages to their
// sessions, and flushes every session. Phase 4 (Output).
type OutputSystem struct {
	world *world.State
	store *net.SessionStore
}

func NewOutputSystem(ws *world.State, store *net.SessionStore) *OutputSystem {
	return &OutputSystem{world: ws, store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.world.Bus.SwapBuffers()
	s.world.Bus.DispatchAll()

	s.world.Sessions.Each(func(id ecs.EntityID, ref *component.SessionRef) {
		msgs := s.world.DrainOutbox(id)
		if len(msgs) == 0 {
			return
		}
		sess := s.store.Get(ref.SessionID)
		if sess == nil {
			return
		}
		for _, m := range msgs {
			sess.Send(m)
		}
	})

	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
