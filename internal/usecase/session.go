package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/telemetry"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

const storeSessionMaxAttempts = 3

// SessionService owns session lifecycle: race-safe creation per device,
// validation, activity stamps, and revocation fan-out.
type SessionService struct {
	sessions    port.SessionRepository
	tokens      port.TokenRepository
	revocations port.SessionRevocationStore
	publisher   port.EventPublisher
	metrics     *telemetry.Provider
	logger      *zap.Logger

	revocationTTL time.Duration
	now           func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(
	sessions port.SessionRepository,
	tokens port.TokenRepository,
	revocations port.SessionRevocationStore,
	publisher port.EventPublisher,
	metrics *telemetry.Provider,
	logger *zap.Logger,
	revocationTTL time.Duration,
) *SessionService {
	return &SessionService{
		sessions:      sessions,
		tokens:        tokens,
		revocations:   revocations,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
		revocationTTL: revocationTTL,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// StoreSession creates or supersedes the session for (user, device). Under
// concurrent logins from the same device, exactly one row survives and it
// carries the latest login's session id: insert losers fall through to an
// overwrite of the existing row, and a Replace that races a delete retries
// the insert.
func (s *SessionService) StoreSession(ctx context.Context, userID string, client domain.ClientInfo, absoluteExpiry time.Time) (domain.Session, error) {
	now := s.now().UTC()

	session := domain.Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		DeviceID:        client.DeviceID,
		IPAddress:       optional(client.IPAddress),
		UserAgent:       optional(client.UserAgent),
		OperatingSystem: optional(client.OperatingSystem),
		CreatedAt:       now,
		LastActivityAt:  now,
		ExpiresAt:       absoluteExpiry,
	}

	for attempt := 0; attempt < storeSessionMaxAttempts; attempt++ {
		err := s.sessions.Create(ctx, session)
		if err == nil {
			s.RecordEvent(ctx, session.ID, domain.SessionEventCreated, client, nil)
			return session, nil
		}
		if !errors.Is(err, repository.ErrDuplicateDevice) {
			return domain.Session{}, fmt.Errorf("create session: %w", err)
		}

		err = s.sessions.Replace(ctx, session)
		if err == nil {
			s.RecordEvent(ctx, session.ID, domain.SessionEventCreated, client, map[string]any{
				"superseded": true,
			})
			return session, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, fmt.Errorf("replace session: %w", err)
		}
		// Row vanished between the duplicate and the overwrite; insert again.
	}

	return domain.Session{}, fmt.Errorf("store session for user %s: retries exhausted", userID)
}

// ValidateSession reports whether the session exists for the user, is not
// revoked, and has not passed its absolute expiry.
func (s *SessionService) ValidateSession(ctx context.Context, userID, sessionID string) (bool, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}

	if session.UserID != userID {
		return false, nil
	}

	return session.IsActive(s.now().UTC()), nil
}

// UpdateLastActivity bumps the activity stamp. Best effort: failures are
// logged and swallowed so they never block the request being serviced.
func (s *SessionService) UpdateLastActivity(ctx context.Context, sessionID string) {
	if err := s.sessions.Touch(ctx, sessionID, s.now().UTC()); err != nil {
		s.logger.Warn("update session activity failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// ListSessions returns the user's sessions, all states included.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeSession terminates one session: the row, its refresh tokens, the
// fast-path revocation mark, and the published event.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID, reason string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return repository.ErrNotFound
	}

	return s.revoke(ctx, session, reason)
}

// RevokeSessions batch-revokes the listed sessions for the user and returns
// how many were actually revoked.
func (s *SessionService) RevokeSessions(ctx context.Context, userID string, sessionIDs []string, reason string) (int, error) {
	now := s.now().UTC()

	revoked, err := s.sessions.RevokeBatch(ctx, userID, sessionIDs, reason, now)
	if err != nil {
		return 0, fmt.Errorf("batch revoke sessions: %w", err)
	}

	for _, id := range sessionIDs {
		if _, err := s.tokens.RevokeBySession(ctx, id, now); err != nil {
			s.logger.Warn("revoke session tokens failed", zap.String("session_id", id), zap.Error(err))
		}
		if err := s.revocations.MarkSessionRevoked(ctx, id, reason, s.revocationTTL); err != nil {
			s.logger.Warn("mark session revoked failed", zap.String("session_id", id), zap.Error(err))
		}
		s.RecordEvent(ctx, id, domain.SessionEventRevoked, domain.ClientInfo{}, map[string]any{
			"reason": reason,
		})
		s.publishRevoked(ctx, domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			SessionID: id,
			UserID:    userID,
			RevokedAt: now,
			Reason:    reason,
		})
		s.metrics.ObserveSessionRevoked()
	}

	return revoked, nil
}

func (s *SessionService) revoke(ctx context.Context, session *domain.Session, reason string) error {
	now := s.now().UTC()

	if err := s.sessions.Revoke(ctx, session.ID, reason, now); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if _, err := s.tokens.RevokeBySession(ctx, session.ID, now); err != nil {
		return fmt.Errorf("revoke session tokens: %w", err)
	}
	if err := s.revocations.MarkSessionRevoked(ctx, session.ID, reason, s.revocationTTL); err != nil {
		s.logger.Warn("mark session revoked failed", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.RecordEvent(ctx, session.ID, domain.SessionEventRevoked, domain.ClientInfo{}, map[string]any{
		"reason": reason,
	})
	s.publishRevoked(ctx, domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		UserID:    session.UserID,
		DeviceID:  session.DeviceID,
		RevokedAt: now,
		Reason:    reason,
	})
	s.metrics.ObserveSessionRevoked()

	return nil
}

// RecordEvent appends an audit row for the session. Best effort by contract:
// the audit trail never fails the operation it describes.
func (s *SessionService) RecordEvent(ctx context.Context, sessionID, kind string, client domain.ClientInfo, details map[string]any) {
	event := domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		At:        s.now().UTC(),
		IP:        optional(client.IPAddress),
		UserAgent: optional(client.UserAgent),
		Details:   details,
	}
	if err := s.sessions.StoreEvent(ctx, event); err != nil {
		s.logger.Warn("store session event failed",
			zap.String("session_id", sessionID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func (s *SessionService) publishRevoked(ctx context.Context, event domain.SessionRevokedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked failed", zap.String("session_id", event.SessionID), zap.Error(err))
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
