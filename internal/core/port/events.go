package port

import (
	"context"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// EventPublisher emits security events for downstream consumers.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishTokenReuseDetected(ctx context.Context, event domain.TokenReuseDetectedEvent) error
	PublishExternalLoginLinked(ctx context.Context, event domain.ExternalLoginLinkedEvent) error
}
