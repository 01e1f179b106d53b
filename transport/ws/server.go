package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain"
)

// AuthenticateFunc is the connection-establishment precondition: it resolves
// a bearer token to an identity or rejects the handshake.
type AuthenticateFunc func(token string) (domain.UserIdentity, error)

// Server upgrades HTTP requests to websocket sessions and hands them to the
// relay.
type Server struct {
	log          *slog.Logger
	relay        contract.IRelay
	authenticate AuthenticateFunc
	bufferSize   int
	upgrader     websocket.Upgrader
}

func NewServer(log *slog.Logger, relay contract.IRelay, authenticate AuthenticateFunc, connectionBufferSize int) *Server {
	return &Server{
		log:          log,
		relay:        relay,
		authenticate: authenticate,
		bufferSize:   connectionBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Origin allow-listing is handled by the fronting proxy.
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "error", err)
		return
	}

	conn := newConn(uuid.NewString(), socket, s.relay, s.bufferSize, s.log)
	s.log.Info(fmt.Sprintf("Transport session opened for %s", identity.ID), "conn_id", conn.id)

	// The session stays Pending until a user_connected event attaches the
	// identity through the relay. The request context dies with this
	// handler, so the pumps run on their own lifetime.
	go conn.writePump()
	go conn.readPump(context.Background())
}
