// Package redis keeps editor sessions in Redis so any API instance can
// serve any session
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"sitemap-backend/application/session"
	pkgerrors "sitemap-backend/pkg/errors"
)

const keyPrefix = "sitemap:session:"

// SessionStore stores serialized session state with a sliding TTL
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a Redis-backed session store
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) makeKey(id string) string {
	return keyPrefix + id
}

// Get loads a session. Unknown and expired sessions are both NotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.makeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("session %s", id))
		}
		return nil, pkgerrors.NewUnavailableError("session store").WithCause(err)
	}

	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, pkgerrors.NewInternalError("stored session is unreadable").WithCause(err)
	}
	return session.FromState(&state)
}

// Put stores a session and restarts its TTL
func (s *SessionStore) Put(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess.ToState())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.makeKey(sess.ID()), data, s.ttl).Err(); err != nil {
		return pkgerrors.NewUnavailableError("session store").WithCause(err)
	}
	return nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.makeKey(id)).Err(); err != nil {
		return pkgerrors.NewUnavailableError("session store").WithCause(err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
