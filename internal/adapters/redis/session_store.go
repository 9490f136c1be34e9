// Package redis provides Redis-backed adapters for the apply orchestrator.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jobshield/jobshield/internal/data"
	"github.com/jobshield/jobshield/internal/domain/model"
)

// defaultSessionPrefix namespaces the per-user active apply session keys.
const defaultSessionPrefix = "apply_session:"

// SessionStore persists the per-user active apply session in Redis. SET is
// an atomic replace, so a new session displaces the old one without a read.
// Redis TTLs track session expiry; Get re-checks ExpiresAt defensively.
type SessionStore struct {
	client       redis.UniversalClient
	prefix       string
	timeProvider data.TimeProvider
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{
		client:       client,
		prefix:       defaultSessionPrefix,
		timeProvider: &data.RealTimeProvider{},
	}
}

// NewSessionStoreWithPrefix creates a session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client:       client,
		prefix:       prefix,
		timeProvider: &data.RealTimeProvider{},
	}
}

// NewSessionStoreWithClock creates a session store reading time from the
// given provider instead of the wall clock.
func NewSessionStoreWithClock(client redis.UniversalClient, timeProvider data.TimeProvider) *SessionStore {
	store := NewSessionStore(client)
	if timeProvider != nil {
		store.timeProvider = timeProvider
	}
	return store
}

// Set upserts the user's session. Any prior session for the user is replaced.
func (s *SessionStore) Set(ctx context.Context, session *model.ActiveApplySession) error {
	if session == nil || session.UserID == "" {
		return errors.New("session user id is required")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(s.timeProvider.Now())
	if ttl <= 0 {
		return errors.New("session is already expired")
	}

	return s.client.Set(ctx, s.key(session.UserID), data, ttl).Err()
}

// Get returns the user's session, or nil when absent or expired.
func (s *SessionStore) Get(ctx context.Context, userID string) (*model.ActiveApplySession, error) {
	if userID == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session model.ActiveApplySession
	if unmarshalErr := json.Unmarshal([]byte(data), &session); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// The Redis TTL should have expired the key already; re-check in case of
	// clock drift between writer and reader.
	if session.Expired(s.timeProvider.Now()) {
		if clearErr := s.Clear(ctx, userID); clearErr != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", clearErr)
		}
		return nil, nil
	}

	return &session, nil
}

// Clear deletes the user's session if present.
func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *SessionStore) key(userID string) string {
	return s.prefix + userID
}
