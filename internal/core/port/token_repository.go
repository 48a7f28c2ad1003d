package port

import (
	"context"
	"time"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// TokenRepository persists refresh tokens. Rotate executes the
// revoke-old/insert-new/touch-session triple inside one transaction and
// returns repository.ErrAlreadyRotated when the predecessor was revoked
// before the transaction could claim it.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, oldTokenID string, next domain.RefreshToken, at time.Time) error
	RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int, error)
}
