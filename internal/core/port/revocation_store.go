package port

import (
	"context"
	"time"
)

// SessionRevocationStore caches session revocation flags so the validation
// middleware can fail closed without a database round trip.
type SessionRevocationStore interface {
	MarkSessionRevoked(ctx context.Context, sessionID string, reason string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, string, error)
}
