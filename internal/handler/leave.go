package handler

import (
	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
)

// HandleLeave processes LEAVE: the viewer is removed at the end of the tick
// and the connection is closed.
func HandleLeave(sess *net.Session, _ *packet.Reader, deps *Deps) {
	if id, ok := deps.World.BySession(sess.ID); ok {
		deps.World.DespawnViewer(id)
	}
	sess.FlushOutput()
	sess.Close()
}
