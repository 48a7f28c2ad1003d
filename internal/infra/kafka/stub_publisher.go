package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"device_id":  event.DeviceID,
		"revoked_at": event.RevokedAt,
		"reason":     event.Reason,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.session.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

// PublishTokenReuseDetected logs auth.token.reuse_detected events.
func (p *StubPublisher) PublishTokenReuseDetected(_ context.Context, event domain.TokenReuseDetectedEvent) error {
	payload := map[string]any{
		"session_id":  event.SessionID,
		"user_id":     event.UserID,
		"token_id":    event.TokenID,
		"detected_at": event.DetectedAt,
		"ip_address":  event.IPAddress,
		"user_agent":  event.UserAgent,
	}
	p.logEvent("auth.token.reuse_detected", event.UserID, event.DetectedAt, payload)
	return nil
}

// PublishExternalLoginLinked logs auth.external_login.linked events.
func (p *StubPublisher) PublishExternalLoginLinked(_ context.Context, event domain.ExternalLoginLinkedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"provider":     event.Provider,
		"subject_id":   event.SubjectID,
		"linked_at":    event.LinkedAt,
		"user_created": event.UserCreated,
	}
	p.logEvent("auth.external_login.linked", event.UserID, event.LinkedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
