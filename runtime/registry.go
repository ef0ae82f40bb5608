package runtime

import (
	"sync"

	"chat-relay/contract"
)

// Registry is the process-local connection registry: one live transport
// session per user, last connection wins. It is pure in-memory bookkeeping;
// none of its operations can fail, and absence on lookup is an expected
// steady-state condition, not an error.
//
// Scaling beyond one process requires externalizing this map; the design
// deliberately does not attempt that.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]string             // userID -> current sessionID
	sinks    map[string]contract.EventSink // sessionID -> sink
	owners   map[string]string             // sessionID -> userID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]string),
		sinks:    make(map[string]contract.EventSink),
		owners:   make(map[string]string),
	}
}

// Register records the live session for userID, silently superseding any
// previous one. The superseded session is not closed; it simply stops
// receiving push events and unregisters itself as a no-op on disconnect.
func (r *Registry) Register(userID, sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[userID] = sessionID
	r.sinks[sessionID] = sink
	r.owners[sessionID] = userID
}

// Resolve returns the current session for userID. A missing entry means
// the user is not reachable right now; fan-out skips them.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.sessions[userID]
	return sessionID, ok
}

// Sink resolves a session id into its push channel.
func (r *Registry) Sink(sessionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[sessionID]
	return sink, ok
}

// Unregister removes a session on disconnect. If the session was already
// superseded by a newer connection of the same user, the user mapping is
// left pointing at the newer session.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[sessionID]
	if !ok {
		return
	}
	delete(r.owners, sessionID)
	delete(r.sinks, sessionID)

	if current, ok := r.sessions[userID]; ok && current == sessionID {
		delete(r.sessions, userID)
	}
}
