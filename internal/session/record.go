package session

import (
	"sync"
	"time"
)

// Session is the per-guild coordination record. The command lock guards
// every inspect-then-mutate span on the guild's voice connection; the
// bookkeeping fields have their own mutex so the inactivity monitor never
// contends with an in-flight command.
type Session struct {
	ID string

	// mu is the command serializer lock. Held for the full span of any
	// voice-connection-mutating operation.
	mu sync.Mutex

	stateMu        sync.Mutex
	lastActivityAt time.Time
	lastChannelID  string
	resolving      bool
	queue          *queueTask
}

func newSession(id string) *Session {
	return &Session{ID: id}
}

func (s *Session) Lock()         { s.mu.Lock() }
func (s *Session) Unlock()       { s.mu.Unlock() }
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Touch records a completed voice command. An empty channelID keeps the
// previous notification channel.
func (s *Session) Touch(channelID string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if channelID != "" {
		s.lastChannelID = channelID
	}
	s.lastActivityAt = time.Now()
}

// MarkInactive clears activity tracking. The record itself, and therefore
// the lock identity, survives.
func (s *Session) MarkInactive() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastActivityAt = time.Time{}
}

// IsActive reports whether the session has tracked activity.
func (s *Session) IsActive() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return !s.lastActivityAt.IsZero()
}

// ShouldTimeout reports whether the session is active but idle beyond the
// given threshold.
func (s *Session) ShouldTimeout(now time.Time, timeout time.Duration) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.lastActivityAt.IsZero() {
		return false
	}
	return now.Sub(s.lastActivityAt) > timeout
}

// LastChannelID is the text channel of the most recent voice command,
// used only for outbound notifications.
func (s *Session) LastChannelID() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastChannelID
}

// beginResolve marks a remote lookup in flight. It returns false if one
// already is, in which case the caller must back off instead of queueing.
func (s *Session) beginResolve() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.resolving {
		return false
	}
	s.resolving = true
	return true
}

func (s *Session) endResolve() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.resolving = false
}

func (s *Session) setQueue(q *queueTask) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.queue = q
}

// takeQueue detaches the active queue task, if any, so the caller can
// reap it.
func (s *Session) takeQueue() *queueTask {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}
