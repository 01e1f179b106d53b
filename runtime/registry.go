// Package runtime hosts the presence registry and the relay engine.
// It coordinates connections without containing transport or storage logic.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry is the single source of truth for "who is reachable right now".
// It maps authenticated users to their live connection and keeps a
// deterministic insertion order for snapshots. All state is process-local:
// empty at start, rebuilt as clients reconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.Session // userID -> live session
	conns    map[string]string           // connID -> userID
	order    []string                    // userIDs, insertion order
	changes  chan struct{}
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.Session),
		conns:    make(map[string]string),
		changes:  make(chan struct{}, 1),
	}
}

// Register inserts or replaces the mapping for a user. A connect payload
// without a user id is dropped, not failed. A second connect for the same
// identity wins over the first and the replaced connection id is forgotten,
// so the stale socket's close cannot evict the fresh session.
// TODO multi-device: last-write-wins is the observed behavior of the previous
// implementation; product has not decided whether concurrent sessions per
// user should fan out instead.
func (r *Registry) Register(s contract.Session) {
	if s.UserID == "" {
		return
	}
	r.mu.Lock()
	if prev, ok := r.sessions[s.UserID]; ok {
		delete(r.conns, prev.ConnID)
	} else {
		r.order = append(r.order, s.UserID)
	}
	r.sessions[s.UserID] = s
	r.conns[s.ConnID] = s.UserID
	r.mu.Unlock()

	r.signal()
}

// Lookup resolves a user to its live session. Safe to call concurrently with
// Register and Unregister.
func (r *Registry) Lookup(userID string) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Unregister removes the entry owning connID. A connection that closed
// before completing its handshake, or that was already cleaned up, owns no
// identity and this is a no-op. Returns whether an entry was removed, so
// callers only broadcast presence on actual changes.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	userID, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, connID)
	delete(r.sessions, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.signal()
	return true
}

// Snapshot returns the current presence list in insertion order, never
// containing the excluded identity.
func (r *Registry) Snapshot(excludeUserID string) []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]domain.PresenceEntry, 0, len(r.order))
	for _, id := range r.order {
		if id == excludeUserID {
			continue
		}
		s := r.sessions[id]
		entries = append(entries, domain.PresenceEntry{UserID: s.UserID, Username: s.Username})
	}
	return entries
}

// Sessions returns all live sessions in insertion order.
func (r *Registry) Sessions() []contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]contract.Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	return sessions
}

// Changes delivers a coalesced signal after every effective mutation.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *Registry) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
		// A broadcast is already pending; it will observe this change too.
	}
}
