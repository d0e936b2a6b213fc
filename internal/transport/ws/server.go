// Package ws exposes the session coordinator over websockets. Each client
// connection gets an opaque uuid identity, one reader goroutine that decodes
// JSON envelopes into coordinator calls, and one writer goroutine that drains
// the connection's broadcast entity.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/broadcast"
	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/game/session"
)

const (
	// entityBuffer is the per-connection outbound event buffer.
	entityBuffer = 64
	// maxMessageSize bounds inbound frames; game messages are tiny.
	maxMessageSize = 4096
	// shutdownGrace is how long Stop waits for in-flight handlers.
	shutdownGrace = 5 * time.Second
)

// Server accepts websocket connections on /ws and bridges them to the
// coordinator and broadcast hub.
type Server struct {
	cfg    config.ServerConfig
	hub    *broadcast.Hub
	coord  *session.Coordinator
	logger *zap.Logger

	upgrader websocket.Upgrader
	wg       sync.WaitGroup

	mu      sync.Mutex
	httpSrv *http.Server
	conns   map[*websocket.Conn]struct{}
	closed  bool
}

// NewServer creates a websocket server.
//
// Precondition: hub, coord, and logger must be non-nil.
func NewServer(cfg config.ServerConfig, hub *broadcast.Hub, coord *session.Coordinator, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		hub:    hub,
		coord:  coord,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game is served to browser clients from arbitrary origins;
			// identity comes from the connection, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe starts the HTTP listener and blocks until Stop is called.
//
// Precondition: The server must not already be running.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: mux,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", s.cfg.Addr()),
	)

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serving websocket endpoint: %w", err)
	}
	return nil
}

// Stop shuts the listener down, closes every live client connection, and
// waits for connection handlers to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	srv := s.httpSrv
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("forcing websocket listener close", zap.Error(err))
			_ = srv.Close()
		}
	}

	// Upgraded connections are hijacked out of the http.Server, so Shutdown
	// never reaches them. Closing each conn unblocks its reader, which lets
	// serveConn run its disconnect path and release the wait group.
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}

	s.wg.Wait()
	s.logger.Info("websocket server stopped")
}

// handleWS upgrades a connection and runs its session until disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrading connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.serveConn(conn, r.RemoteAddr)
}

func (s *Server) serveConn(conn *websocket.Conn, remoteAddr string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	start := time.Now()

	connID := uuid.NewString()
	entity := s.hub.Register(connID, entityBuffer)

	s.logger.Info("client connected",
		zap.String("conn_id", connID),
		zap.String("remote_addr", remoteAddr),
	)

	// Writer: drain the broadcast entity until it closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range entity.Events() {
			if s.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("writing to client",
					zap.String("conn_id", connID),
					zap.Error(err),
				)
				return
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	s.readLoop(conn, connID)

	// Disconnection is asynchronous relative to in-flight operations from
	// this connection; the coordinator tolerates late calls as no-ops.
	s.coord.Disconnect(connID)
	s.hub.Deregister(connID)
	_ = conn.Close()
	<-done

	s.logger.Info("client disconnected",
		zap.String("conn_id", connID),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Server) readLoop(conn *websocket.Conn, connID string) {
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("dropping malformed frame",
				zap.String("conn_id", connID),
				zap.Error(err),
			)
			continue
		}
		s.dispatch(connID, env)
	}
}

// dispatch decodes the envelope payload and invokes the coordinator. Unknown
// methods and malformed payloads are logged and dropped; the game state never
// sees them.
func (s *Server) dispatch(connID string, env Envelope) {
	switch env.Type {
	case MethodJoinOrCreate:
		var p joinPayload
		if !s.decode(connID, env, &p) {
			return
		}
		code := s.coord.JoinOrCreate(connID, p.Name)
		s.hub.Send(connID, EventRoomJoined, roomJoinedPayload{Code: code, Ok: true})

	case MethodCreateRoom:
		var p joinPayload
		if !s.decode(connID, env, &p) {
			return
		}
		code := s.coord.CreateRoom(connID, p.Name)
		s.hub.Send(connID, EventRoomJoined, roomJoinedPayload{Code: code, Ok: true})

	case MethodJoinRoom:
		var p joinRoomPayload
		if !s.decode(connID, env, &p) {
			return
		}
		ok := s.coord.JoinRoom(connID, p.Code, p.Name)
		reply := roomJoinedPayload{Ok: ok}
		if ok {
			reply.Code = p.Code
		}
		s.hub.Send(connID, EventRoomJoined, reply)

	case MethodUpdatePosition:
		var p movePayload
		if !s.decode(connID, env, &p) {
			return
		}
		s.coord.UpdatePosition(connID, p.X, p.Y, p.Angle)

	case MethodShoot:
		var p shootPayload
		if !s.decode(connID, env, &p) {
			return
		}
		s.coord.Shoot(connID, p.Angle)

	case MethodCheckHit:
		var p hitPayload
		if !s.decode(connID, env, &p) {
			return
		}
		s.coord.CheckHit(connID, p.BulletID, p.TargetID)

	case MethodRespawn:
		s.coord.Respawn(connID)

	default:
		s.logger.Warn("unknown method",
			zap.String("conn_id", connID),
			zap.String("method", env.Type),
		)
	}
}

func (s *Server) decode(connID string, env Envelope, out any) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		s.logger.Warn("dropping malformed payload",
			zap.String("conn_id", connID),
			zap.String("method", env.Type),
			zap.Error(err),
		)
		return false
	}
	return true
}
