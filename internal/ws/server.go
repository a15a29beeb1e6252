// Package ws owns the WebSocket side of the backend: upgrading HTTP requests,
// resolving the caller's identity at handshake time, and running one read
// loop goroutine per connection that feeds inbound frames to the chat relay.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vetriapp/vetri-backend/internal/chat"
	"github.com/vetriapp/vetri-backend/internal/metrics"
)

// ServerConfig holds tunable parameters for the WebSocket endpoint.
type ServerConfig struct {
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for outbound frame writes
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 10000,
		WriteTimeout:   10 * time.Second,
	}
}

// IdentityVerifier validates a bearer credential and yields the identity it
// belongs to. It is called once per connection at handshake time; the result
// is carried on the session and never re-derived per event.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*chat.Identity, error)
}

// PresenceStore records which sessions are currently online. Optional;
// failures are logged and never affect the connection.
type PresenceStore interface {
	Connect(ctx context.Context, sessionID, username string) error
	Disconnect(ctx context.Context, sessionID string) error
}

// Server upgrades HTTP requests to WebSocket connections and bridges each one
// to the relay. Every connection gets its own goroutine; inbound frames on a
// connection are processed strictly in arrival order because that goroutine
// hands them to the relay one at a time.
type Server struct {
	config    ServerConfig
	relay     *chat.Relay
	verifier  IdentityVerifier
	presence  PresenceStore
	conns     *connectionSet
	startedAt time.Time
}

// NewServer creates a Server over the given relay and identity verifier.
func NewServer(config ServerConfig, relay *chat.Relay, verifier IdentityVerifier) *Server {
	return &Server{
		config:    config,
		relay:     relay,
		verifier:  verifier,
		conns:     newConnectionSet(),
		startedAt: time.Now(),
	}
}

// SetPresence attaches an online-session store. Must be called before the
// server starts accepting connections.
func (s *Server) SetPresence(p PresenceStore) {
	s.presence = p
}

// ConnectionCount returns the number of currently open connections.
func (s *Server) ConnectionCount() int {
	return s.conns.count()
}

// Uptime returns how long the server has been accepting connections.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection, resolves
// the caller's identity from the handshake credential, registers the session
// with the relay and starts the connection's read loop. Connections without a
// valid credential are accepted; they are rejected later, per event, when
// they attempt something privileged.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	// Resolve identity before the upgrade, while the request context is
	// still usable.
	var identity *chat.Identity
	if token := bearerToken(r); token != "" {
		id, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			log.Debug().Err(err).Msg("ws: handshake credential rejected")
		} else {
			identity = id
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}

	c := &Connection{
		ID:           uuid.New().String(),
		Conn:         conn,
		CreatedAt:    time.Now(),
		writeTimeout: s.config.WriteTimeout,
	}
	s.conns.add(c)
	metrics.ConnectionsActive.Inc()

	sess := chat.NewSession(c.ID, identity, c)

	if s.presence != nil {
		username := ""
		if identity != nil {
			username = identity.Username
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.presence.Connect(ctx, c.ID, username); err != nil {
			log.Warn().Str("session", c.ID).Err(err).Msg("ws: presence connect failed")
		}
		cancel()
	}

	s.relay.Connect(sess)
	go s.readLoop(c, sess)

	log.Info().
		Str("session", c.ID).
		Bool("authenticated", identity != nil).
		Int("total", s.conns.count()).
		Msg("ws: new connection")
}

// readLoop reads frames from one connection and hands them to the relay until
// the transport closes. The deferred cleanup runs exactly once on every exit
// path, so the relay's disconnect transition is guaranteed even on abnormal
// termination.
func (s *Server) readLoop(c *Connection, sess *chat.Session) {
	defer func() {
		s.relay.Disconnect(sess)
		if s.conns.remove(c.ID) {
			metrics.ConnectionsActive.Dec()
		}
		if s.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.presence.Disconnect(ctx, c.ID); err != nil {
				log.Warn().Str("session", c.ID).Err(err).Msg("ws: presence disconnect failed")
			}
			cancel()
		}
		_ = c.Close()
		log.Info().Str("session", c.ID).Int("total", s.conns.count()).Msg("ws: connection closed")
	}()

	for {
		data, op, err := wsutil.ReadClientData(c.Conn)
		if err != nil {
			return
		}
		if op != ws.OpText || len(data) == 0 {
			continue
		}
		// Background context on purpose: closing the connection cancels only
		// the pending read above, never a persistence call for an event that
		// was already accepted.
		s.relay.Handle(context.Background(), sess, data)
	}
}

// Shutdown closes every open connection. Each read loop unwinds through its
// deferred cleanup, unregistering the session from the relay.
func (s *Server) Shutdown() {
	for _, c := range s.conns.all() {
		_ = c.Close()
	}
	log.Info().Msg("ws: server stopped, all connections closed")
}

// bearerToken extracts the handshake credential: the "token" query parameter,
// or a Bearer Authorization header.
func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
