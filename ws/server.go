// Package ws is the realtime transport: it upgrades HTTP connections,
// attaches the trusted identity from the handshake, and bridges the wire
// protocol to the chat service and the fan-out runtime.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	log      *slog.Logger
	verifier *auth.Verifier // nil means the handshake user id is trusted as-is
	registry contract.IRegistry
	rooms    contract.IRoomSet
	chat     services.IChatService
	metrics  *observability.Metrics

	rootCtx    context.Context
	sendBuffer int
	upgrader   websocket.Upgrader
	handler    http.Handler
}

// NewServer wires the transport. rootCtx outlives individual connections;
// inbound handlers run against it so a disconnect never cancels a
// persistence write already in flight.
func NewServer(rootCtx context.Context, log *slog.Logger, verifier *auth.Verifier,
	registry contract.IRegistry, rooms contract.IRoomSet, chat services.IChatService,
	metrics *observability.Metrics, sendBuffer int) *Server {
	s := &Server{
		log:        log,
		verifier:   verifier,
		registry:   registry,
		rooms:      rooms,
		chat:       chat,
		metrics:    metrics,
		rootCtx:    rootCtx,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the separately hosted frontend.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := chi.NewRouter()
	router.Get("/ws", s.handleConnect)
	router.Get("/healthz", s.handleHealth)
	router.Get("/history/direct", s.handleDirectHistory)
	router.Get("/history/group/{groupID}", s.handleGroupHistory)
	router.Handle("/metrics", promhttp.Handler())
	s.handler = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// handleConnect performs the handshake: identity first, upgrade second.
// The identity is whatever the auth collaborator vouched for; the core does
// not verify credentials beyond the token signature.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identify(r)
	if err != nil {
		s.log.Warn("handshake refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(s, conn, userID)
	s.registry.Register(userID, client.SessionID, client)
	s.metrics.ActiveConnections.Inc()
	s.log.Info("session opened", "session_id", client.SessionID, "user_id", userID)

	go client.writePump()
	go client.readPump(s.rootCtx)
}

// identify extracts the trusted user id from the handshake. With a verifier
// configured the token query parameter must carry a valid signature; without
// one (development mode) the raw userId parameter is trusted as-is.
func (s *Server) identify(r *http.Request) (string, error) {
	if s.verifier != nil {
		return s.verifier.Verify(r.URL.Query().Get("token"))
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return "", errors.ErrMissingIdentity
	}
	return userID, nil
}

// detach tears one session down: room memberships are discarded implicitly,
// the registry entry is removed (a no-op if a newer connection of the same
// user superseded it), and the write pump is released.
func (s *Server) detach(c *Client) {
	s.rooms.DropSession(c.SessionID)
	s.registry.Unregister(c.SessionID)
	close(c.done)
	_ = c.conn.Close()
	s.metrics.ActiveConnections.Dec()
	s.log.Info("session closed", "session_id", c.SessionID, "user_id", c.UserID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
