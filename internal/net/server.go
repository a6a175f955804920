package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/l1jgo/interest/internal/config"
	"github.com/l1jgo/interest/internal/net/packet"
	"go.uber.org/zap"
)

const (
	handshakeTimeout = 5 * time.Second
	maxMessageSize   = 64 * 1024
)

// Status is served on /v1/status so tooling can discover the view limits
// before opening a websocket.
type Status struct {
	ProtocolVersion string `json:"protocol_version"`
	Server          string `json:"server"`
	TickRateMs      int64  `json:"tick_rate_ms"`
	ViewDistance    int    `json:"view_distance"`
	MaxViewDistance int    `json:"max_view_distance"`
}

// Server accepts observer websocket connections and creates Sessions.
// New sessions are handed to the game loop over a buffered channel.
type Server struct {
	cfg      config.NetworkConfig
	status   Status
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	newConns chan *Session
	listener net.Listener
	http     *http.Server
	log      *zap.Logger
	closing  atomic.Bool
}

func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	joinQueue := max(cfg.Network.JoinQueue, 1)
	return &Server{
		cfg: cfg.Network,
		status: Status{
			ProtocolVersion: packet.ProtocolVersion,
			Server:          cfg.Server.Name,
			TickRateMs:      cfg.Network.TickRate.Milliseconds(),
			ViewDistance:    cfg.View.ViewDistance,
			MaxViewDistance: cfg.View.MaxViewDistance,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see handleObserve
		},
		newConns: make(chan *Session, joinQueue),
		log:      log,
	}
}

// Handler returns the HTTP routes served by the observer listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", s.handleObserve)
	mux.HandleFunc("/v1/status", s.handleStatus)
	return mux
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.BindAddress, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: handshakeTimeout,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("觀察者伺服器停止", zap.Error(err))
		}
	}()
	return nil
}

// NewSessions returns the channel of newly subscribed sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Addr returns the listener's address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight upgrades.
// Hijacked websocket connections are closed by their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(s.status)
}

func (s *Server) handleObserve(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	if s.closing.Load() {
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return // upgrader already wrote the HTTP error
	}
	conn.SetReadLimit(maxMessageSize)

	// Handshake: the first message must be SUBSCRIBE.
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, first, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	rd, err := packet.NewReader(first)
	if err != nil || rd.Type() != packet.C_SUBSCRIBE {
		reject(conn, packet.ErrBadRequest, "expected SUBSCRIBE", websocket.ClosePolicyViolation)
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, r.RemoteAddr, max(s.cfg.InQueueSize, 1), s.cfg.OutQueueSize,
		s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.log)

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("連線佇列已滿，拒絕新連線", zap.String("ip", r.RemoteAddr))
		reject(conn, packet.ErrBusy, "server busy", websocket.CloseTryAgainLater)
		return
	}
	sess.Start(first)
	s.log.Info(fmt.Sprintf("觀察者連線  session=%d  ip=%s", id, sess.IP))
}

func reject(conn *websocket.Conn, code, msg string, closeCode int) {
	deadline := time.Now().Add(time.Second)
	_ = conn.SetWriteDeadline(deadline)
	if data, err := packet.Encode(packet.NewError(code, msg)); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, msg), deadline)
	conn.Close()
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
