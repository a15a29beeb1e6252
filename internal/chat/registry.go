package chat

import "sync"

// Registry tracks the set of sessions currently eligible to receive
// broadcasts. Mutations and broadcast iteration may happen concurrently from
// independent connection goroutines.
//
// Broadcast holds the read lock while delivering, so Unregister (which takes
// the write lock) cannot return while a delivery to that session is still in
// flight: once Unregister returns, the session will not be delivered to
// again. Send errors on individual sessions are ignored; a closed transport
// fails quietly and its own read loop performs the cleanup.
type Registry struct {
	mu      sync.RWMutex
	members map[*Session]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[*Session]struct{})}
}

// Register adds a session to the broadcast set. The session becomes a
// broadcast target immediately. Transport identities are unique per
// connection, so no duplicate check is needed.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.members[s] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes a session from the broadcast set. It is idempotent:
// unregistering a session that is not present is a no-op, which covers a
// disconnect racing with cleanup.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	delete(r.members, s)
	r.mu.Unlock()
}

// Broadcast delivers frame to every registered session except exclude (which
// may be nil). It sees the member set as of its invocation instant. The
// number of successful deliveries is returned.
func (r *Registry) Broadcast(frame []byte, exclude *Session) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for s := range r.members {
		if s == exclude {
			continue
		}
		if err := s.Send(frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// Count returns the current number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.members)
	r.mu.RUnlock()
	return n
}
