package runtime

import "sync"

type Set map[string]struct{}

// RoomSet tracks, per session, the group rooms it has explicitly joined.
// Joining is idempotent and trusts the caller: authorization against the
// persisted roster happens upstream, before a join is ever requested.
//
// Membership is connection-scoped. A client that reconnects starts with an
// empty room set and silently receives no group fan-out until it re-joins.
type RoomSet struct {
	mu        sync.RWMutex
	byRoom    map[string]Set // groupID -> sessionIDs
	bySession map[string]Set // sessionID -> groupIDs
}

func NewRoomSet() *RoomSet {
	return &RoomSet{
		byRoom:    make(map[string]Set),
		bySession: make(map[string]Set),
	}
}

// Join adds the session to each named room. Rejoining a room the session
// already sits in is a no-op.
func (r *RoomSet) Join(sessionID string, groupIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySession[sessionID]; !ok {
		r.bySession[sessionID] = make(Set)
	}
	for _, groupID := range groupIDs {
		if _, ok := r.byRoom[groupID]; !ok {
			r.byRoom[groupID] = make(Set)
		}
		r.byRoom[groupID][sessionID] = struct{}{}
		r.bySession[sessionID][groupID] = struct{}{}
	}
}

// Leave removes the session from one room; no-op if it never joined.
func (r *RoomSet) Leave(sessionID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drop(sessionID, groupID)
}

// DropSession discards every membership of a disconnecting session.
// No explicit leave events are needed on disconnect.
func (r *RoomSet) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for groupID := range r.bySession[sessionID] {
		r.drop(sessionID, groupID)
	}
}

// SessionsIn returns every session currently joined to the room.
// Returns nil for an unknown or empty room.
func (r *RoomSet) SessionsIn(groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.byRoom[groupID]
	if !ok {
		return nil
	}
	sessions := make([]string, 0, len(members))
	for sessionID := range members {
		sessions = append(sessions, sessionID)
	}
	return sessions
}

// drop removes one membership edge and cleans up empty sets so the maps
// do not leak entries over time. Caller holds the write lock.
func (r *RoomSet) drop(sessionID, groupID string) {
	if members, ok := r.byRoom[groupID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.byRoom, groupID)
		}
	}
	if rooms, ok := r.bySession[sessionID]; ok {
		delete(rooms, groupID)
		if len(rooms) == 0 {
			delete(r.bySession, sessionID)
		}
	}
}
