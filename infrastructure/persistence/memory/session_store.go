package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sitemap-backend/application/session"
	pkgerrors "sitemap-backend/pkg/errors"
)

type storedSession struct {
	state     *session.State
	expiresAt time.Time
}

// SessionStore keeps sessions in process. Each Get rebuilds the session from
// its stored state, so callers never share mutable session objects.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]storedSession
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session store whose entries expire after ttl
// of inactivity. A zero ttl never expires.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]storedSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get loads a session
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("session %s", id)).WithCode(pkgerrors.CodeSessionExpired)
	}
	s.mu.Unlock()

	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("session %s", id))
	}
	return session.FromState(entry.state)
}

// Put stores a session and refreshes its expiry
func (s *SessionStore) Put(ctx context.Context, sess *session.Session) error {
	state := sess.ToState()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = storedSession{state: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
