package port

import (
	"context"
	"time"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// AuthorizationCodeStore holds one-time authorization grants between the
// authorize and token endpoints. Consume must be atomic: a code can be
// redeemed at most once.
type AuthorizationCodeStore interface {
	Save(ctx context.Context, code string, grant domain.AuthorizationGrant, ttl time.Duration) error
	Consume(ctx context.Context, code string) (*domain.AuthorizationGrant, error)
}
