package session

import "sync"

// Registry maps guild IDs to session records. Records are created on first
// use and never deleted, so a guild's lock identity is stable for the
// process lifetime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the guild's session record, creating an inactive one
// if none exists. Concurrent calls for the same guild return the same
// record.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s = newSession(guildID)
	r.sessions[guildID] = s
	return s
}

// MarkInactive clears the guild's activity tracking without removing the
// record. Unknown guilds are a no-op.
func (r *Registry) MarkInactive(guildID string) {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if ok {
		s.MarkInactive()
	}
}

// Known reports whether the guild already has a record.
func (r *Registry) Known(guildID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[guildID]
	return ok
}

// Snapshot returns the current session records. The slice is a copy; the
// records are shared.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of known guilds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
