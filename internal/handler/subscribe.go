package handler

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
)

const maxNameLen = 32

// HandleSubscribe processes SUBSCRIBE. The first one creates the viewer;
// later ones move it and optionally change its view distance. Interest maps
// pick the change up in the tracking pass of the same tick.
func HandleSubscribe(sess *net.Session, r *packet.Reader, deps *Deps) {
	var sub packet.Subscribe
	if err := r.Decode(&sub); err != nil {
		sendError(sess, packet.ErrBadRequest, err.Error())
		return
	}
	if n := utf8.RuneCountInString(sub.Name); n == 0 || n > maxNameLen {
		sendError(sess, packet.ErrBadRequest, "name must be 1-32 characters")
		return
	}
	if sub.ViewDistance != nil && *sub.ViewDistance < 0 {
		sendError(sess, packet.ErrBadRequest, "view_distance must not be negative")
		return
	}

	if sess.State() == packet.StateHandshake {
		joinViewer(sess, &sub, deps)
		return
	}

	id, ok := deps.World.BySession(sess.ID)
	if !ok {
		return
	}
	if sub.Name != sess.Name {
		sendError(sess, packet.ErrBadRequest, "name cannot change")
		return
	}
	deps.World.MoveViewer(id, sub.X, sub.Z)
	if sub.ViewDistance != nil {
		requested := *sub.ViewDistance
		effective := deps.Scripting.ClampViewDistance(requested, deps.Config.View.MaxViewDistance)
		deps.World.SetViewDistance(id, requested, effective)
	}
}

func joinViewer(sess *net.Session, sub *packet.Subscribe, deps *Deps) {
	if _, taken := deps.World.ByName(sub.Name); taken {
		sendError(sess, packet.ErrNameTaken, "name already observing")
		return
	}

	spec := world.ViewerSpec{
		Name:      sub.Name,
		X:         sub.X,
		Z:         sub.Z,
		Requested: deps.Config.View.ViewDistance,
		SessionID: sess.ID,
	}
	restored := false
	if deps.Viewers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		row, err := deps.Viewers.Load(ctx, sub.Name)
		cancel()
		if err != nil {
			deps.Log.Error("載入觀察者失敗", zap.String("name", sub.Name), zap.Error(err))
		} else if row != nil {
			spec.Requested = row.ViewDistance
			if sub.Resume {
				spec.X, spec.Z = row.X, row.Z
			}
			restored = true
		}
	}
	if sub.ViewDistance != nil {
		spec.Requested = *sub.ViewDistance
	}
	spec.Effective = deps.Scripting.ClampViewDistance(spec.Requested, deps.Config.View.MaxViewDistance)

	id, err := deps.World.SpawnViewer(spec)
	if err != nil {
		sendError(sess, packet.ErrNameTaken, err.Error())
		return
	}
	sess.Name = sub.Name
	sess.SetState(packet.StateSubscribed)
	sess.Send(packet.Welcome{
		Type:            packet.S_WELCOME,
		ProtocolVersion: packet.ProtocolVersion,
		Name:            sub.Name,
		X:               spec.X,
		Z:               spec.Z,
		ViewDistance:    spec.Effective,
		MaxViewDistance: deps.Config.View.MaxViewDistance,
		TickRateMs:      deps.Config.Network.TickRate.Milliseconds(),
		Restored:        restored,
	})

	deps.Log.Info("觀察者加入",
		zap.String("name", sub.Name),
		zap.Stringer("entity", id),
		zap.Int32("x", spec.X),
		zap.Int32("z", spec.Z),
		zap.Int("view_distance", spec.Effective),
		zap.Bool("restored", restored),
	)
}
