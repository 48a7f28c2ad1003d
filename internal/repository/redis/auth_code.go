package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

const authCodePrefix = "auth_code:"

// AuthorizationCodeStore holds pending authorization grants in Redis. GETDEL
// makes redemption atomic: concurrent exchanges of the same code cannot both
// succeed.
type AuthorizationCodeStore struct {
	client *redis.Client
}

// NewAuthorizationCodeStore constructs an AuthorizationCodeStore.
func NewAuthorizationCodeStore(client *redis.Client) *AuthorizationCodeStore {
	return &AuthorizationCodeStore{client: client}
}

// Save stores the grant under the opaque code for the given TTL.
func (s *AuthorizationCodeStore) Save(ctx context.Context, code string, grant domain.AuthorizationGrant, ttl time.Duration) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal authorization grant: %w", err)
	}

	if err := s.client.Set(ctx, authCodePrefix+code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store authorization code: %w", err)
	}
	return nil
}

// Consume redeems the code exactly once. A missing, expired, or already
// consumed code yields repository.ErrNotFound.
func (s *AuthorizationCodeStore) Consume(ctx context.Context, code string) (*domain.AuthorizationGrant, error) {
	payload, err := s.client.GetDel(ctx, authCodePrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}

	var grant domain.AuthorizationGrant
	if err := json.Unmarshal([]byte(payload), &grant); err != nil {
		return nil, fmt.Errorf("unmarshal authorization grant: %w", err)
	}

	return &grant, nil
}

var _ port.AuthorizationCodeStore = (*AuthorizationCodeStore)(nil)
