package handler

import (
	"github.com/l1jgo/interest/internal/config"
	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
	"github.com/l1jgo/interest/internal/persist"
	"github.com/l1jgo/interest/internal/scripting"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Scripting *scripting.Engine
	Viewers   *persist.ViewerRepo // nil when the database is disabled
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_SUBSCRIBE,
		[]packet.SessionState{packet.StateHandshake, packet.StateSubscribed},
		func(sess any, r *packet.Reader) {
			HandleSubscribe(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_LEAVE,
		[]packet.SessionState{packet.StateSubscribed},
		func(sess any, r *packet.Reader) {
			HandleLeave(sess.(*net.Session), r, deps)
		},
	)
}

// sendError reports a protocol fault. Faults during the handshake close the
// connection; later ones leave it open.
func sendError(sess *net.Session, code, msg string) {
	sess.Send(packet.NewError(code, msg))
	if sess.State() == packet.StateHandshake {
		sess.FlushOutput()
		sess.Close()
	}
}
