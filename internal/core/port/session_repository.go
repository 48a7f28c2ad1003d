package port

import (
	"context"
	"time"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// SessionRepository persists session records. Create surfaces
// repository.ErrDuplicateDevice when the (user, device) uniqueness
// constraint is violated so callers can retry as an overwrite.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	Replace(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByUserDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Revoke(ctx context.Context, sessionID, reason string, at time.Time) error
	RevokeBatch(ctx context.Context, userID string, sessionIDs []string, reason string, at time.Time) (int, error)
	StoreEvent(ctx context.Context, event domain.SessionEvent) error
}
