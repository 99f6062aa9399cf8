package runtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which sessions are currently live for each identity.
// A user may hold several simultaneous sessions (multiple devices); the
// per-identity set is mutated atomically so a concurrent lookup never
// observes a half-updated entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[uuid.UUID]*Session // identity -> session id -> session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[uuid.UUID]*Session)}
}

// Register adds a session to its identity's set. The first connection of
// an identity creates the entry. Registering the same session twice is
// idempotent: the set is keyed by session id, so no duplicate delivery
// can result.
func (r *Registry) Register(identity string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[identity]
	if !ok {
		set = make(map[uuid.UUID]*Session)
		r.sessions[identity] = set
	}
	set[session.ID] = session
}

// Unregister removes a session from its identity's set and prunes the
// entry once empty. Unknown identity/session pairs are a no-op.
func (r *Registry) Unregister(identity string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[identity]
	if !ok {
		return
	}
	delete(set, session.ID)
	if len(set) == 0 {
		delete(r.sessions, identity)
	}
}

// SessionsFor returns a snapshot of the identity's live sessions.
// An empty result means no one is connected: the message persists but is
// not delivered live.
func (r *Registry) SessionsFor(identity string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sessions[identity]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// AllSessions returns a snapshot of every registered session across all
// identities. Used to resolve the public broadcast fan-out set.
func (r *Registry) AllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, set := range r.sessions {
		for _, s := range set {
			out = append(out, s)
		}
	}
	return out
}

// CountSessions reports the number of live sessions, used as a telemetry gauge.
func (r *Registry) CountSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.sessions {
		n += len(set)
	}
	return n
}
