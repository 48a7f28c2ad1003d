package port

import (
	"context"
	"time"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// UserRepository resolves and maintains local user identities and their
// external provider links.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	ListRoles(ctx context.Context, userID string) ([]string, error)

	GetExternalLogin(ctx context.Context, provider, subjectID string) (*domain.ExternalLogin, error)
	LinkExternalLogin(ctx context.Context, login domain.ExternalLogin) error
}
