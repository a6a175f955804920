package system

import (
	"time"

	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
)

// SessionSource hands newly connected sessions to the game loop.
// Implemented by *net.Server.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// InputSystem accepts new observer sessions, drains their message queues
// through the registry, and despawns the viewers of closed sessions.
// Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	world      *world.State
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *packet.Registry, store *net.SessionStore, ws *world.State, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		world:      ws,
		maxPerTick: max(maxPerTick, 1),
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			s.handleDisconnect(sess)
			s.store.Remove(id)
			continue
		}

		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
					s.log.Debug("訊息分派錯誤",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
				}
			default:
				goto nextSession
			}
		}
	nextSession:
	}

	// 提前 flush：讓 WELCOME 與錯誤訊息立即進入 OutQueue。
	// Phase 4 的 OutputSystem 會再 flush 追蹤階段產生的區塊訊息。
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

// handleDisconnect queues the session's viewer for removal. The viewer's
// final state is saved from the ViewerLeft event.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	id, ok := s.world.BySession(sess.ID)
	if !ok {
		return
	}
	s.world.DespawnViewer(id)
	s.log.Info("觀察者離線", zap.Uint64("session", sess.ID), zap.String("name", sess.Name))
}
