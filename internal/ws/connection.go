package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection wraps a single WebSocket client connection with a write mutex
// that serializes outbound frames across goroutines.
type Connection struct {
	ID           string    // session ID (UUID)
	Conn         net.Conn  // underlying TCP connection
	CreatedAt    time.Time // when the connection was established
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// Send writes a WebSocket text frame to this connection. It satisfies the
// relay's Sender contract; concurrent broadcasts do not interleave frame
// bytes thanks to the write mutex.
func (c *Connection) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// connectionSet is a goroutine-safe registry of open transport connections,
// used for the connection cap and for closing everything on shutdown. It is
// distinct from the relay's session registry, which tracks broadcast targets.
type connectionSet struct {
	mu   sync.RWMutex
	byID map[string]*Connection
}

func newConnectionSet() *connectionSet {
	return &connectionSet{byID: make(map[string]*Connection)}
}

func (cs *connectionSet) add(c *Connection) {
	cs.mu.Lock()
	cs.byID[c.ID] = c
	cs.mu.Unlock()
}

// remove deletes a connection by ID. Returns true if it was present, so
// racing cleanup paths can tell who got there first.
func (cs *connectionSet) remove(id string) bool {
	cs.mu.Lock()
	_, ok := cs.byID[id]
	delete(cs.byID, id)
	cs.mu.Unlock()
	return ok
}

func (cs *connectionSet) count() int {
	cs.mu.RLock()
	n := len(cs.byID)
	cs.mu.RUnlock()
	return n
}

// all returns a snapshot safe to iterate without holding the lock.
func (cs *connectionSet) all() []*Connection {
	cs.mu.RLock()
	conns := make([]*Connection, 0, len(cs.byID))
	for _, c := range cs.byID {
		conns = append(conns, c)
	}
	cs.mu.RUnlock()
	return conns
}
