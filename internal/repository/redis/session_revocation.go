package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
)

const revokedSessionPrefix = "revoked_session:"

// SessionRevocationStore keeps fast-path revocation marks so middleware can
// reject access tokens of revoked sessions before the token itself expires.
type SessionRevocationStore struct {
	client *redis.Client
}

// NewSessionRevocationStore constructs a SessionRevocationStore.
func NewSessionRevocationStore(client *redis.Client) *SessionRevocationStore {
	return &SessionRevocationStore{client: client}
}

// MarkSessionRevoked records the revocation with its reason. The TTL only
// needs to cover the longest access token lifetime; after that every token
// referencing the session has expired on its own.
func (s *SessionRevocationStore) MarkSessionRevoked(ctx context.Context, sessionID string, reason string, ttl time.Duration) error {
	key := revokedSessionPrefix + sessionID
	if err := s.client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("mark session revoked: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a revocation mark exists for the session,
// along with the recorded reason when it does.
func (s *SessionRevocationStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, string, error) {
	reason, err := s.client.Get(ctx, revokedSessionPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("check session revoked: %w", err)
	}
	return true, reason, nil
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
