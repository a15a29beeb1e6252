// Package chat implements the realtime relay for the single global chat room:
// a registry of connected sessions, and a relay that authorizes, persists and
// fans out every inbound event to all registered sessions.
package chat

// Sender delivers one encoded outbound frame to a single connected client.
// Implementations must be safe for concurrent use; delivery to a closed
// transport must return an error rather than panic.
type Sender interface {
	Send(frame []byte) error
}

// Identity is the authenticated principal resolved once at handshake time and
// carried on the session for its whole lifetime.
type Identity struct {
	UserID   int64
	Username string
}

// Session is one live connection to the relay. It is owned by the connection
// handler that created it and referenced (not owned) by the Registry for
// broadcast fan-out. Identity is nil for connections whose handshake carried
// no valid credential; such sessions may join and receive broadcasts but are
// rejected on privileged events.
type Session struct {
	ID       string
	Identity *Identity
	sender   Sender
}

// NewSession wraps a transport sender into a relay session.
func NewSession(id string, identity *Identity, sender Sender) *Session {
	return &Session{ID: id, Identity: identity, sender: sender}
}

// Authenticated reports whether the session resolved an identity at handshake.
func (s *Session) Authenticated() bool {
	return s.Identity != nil
}

// Send writes one outbound frame to this session's transport.
func (s *Session) Send(frame []byte) error {
	return s.sender.Send(frame)
}
