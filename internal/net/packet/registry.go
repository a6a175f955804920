package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake  SessionState = iota // upgraded, first SUBSCRIBE not yet applied
	StateSubscribed                     // tracked by the interest maps
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateSubscribed:
		return "Subscribed"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given session states.
func (reg *Registry) Register(msgType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[msgType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch decodes the envelope, validates the session state, and calls the
// handler. Unknown message types are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty message")
	}
	r, err := NewReader(data)
	if err != nil {
		return err
	}
	reg.log.Debug("收到訊息",
		zap.String("type", r.Type()),
		zap.Int("size", r.Len()),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[r.Type()]
	if !ok {
		reg.log.Debug("未知訊息類型", zap.String("type", r.Type()), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("訊息類型在此狀態下不允許",
			zap.String("type", r.Type()),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("message %s not allowed in state %s", r.Type(), state)
	}

	return reg.safeCall(entry.fn, sess, r)
}

// safeCall executes a handler with panic recovery so one bad message cannot
// crash the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("type", r.Type()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", r.Type(), rec)
		}
	}()
	fn(sess, r)
	return nil
}
