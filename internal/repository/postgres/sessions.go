package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

const sessionsDeviceConstraint = "sessions_user_device_key"

var sessionColumns = []string{
	"id",
	"user_id",
	"device_id",
	"ip_address",
	"user_agent",
	"operating_system",
	"created_at",
	"last_activity_at",
	"last_refresh_at",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool    txBeginner
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool txBeginner) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a session record. The unique index on (user_id, device_id)
// guards against two logins from the same device racing to insert; the loser
// receives repository.ErrDuplicateDevice and is expected to retry as an
// overwrite via Replace.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.DeviceID,
			session.IPAddress,
			session.UserAgent,
			session.OperatingSystem,
			session.CreatedAt,
			session.LastActivityAt,
			session.LastRefreshAt,
			session.ExpiresAt,
			session.RevokedAt,
			session.RevokeReason,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err, sessionsDeviceConstraint) {
			return repository.ErrDuplicateDevice
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Replace overwrites the surviving (user, device) row with the latest login's
// session id and metadata, superseding the prior session in place.
func (r *SessionRepository) Replace(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("id", session.ID).
		Set("ip_address", session.IPAddress).
		Set("user_agent", session.UserAgent).
		Set("operating_system", session.OperatingSystem).
		Set("created_at", session.CreatedAt).
		Set("last_activity_at", session.LastActivityAt).
		Set("last_refresh_at", session.LastRefreshAt).
		Set("expires_at", session.ExpiresAt).
		Set("revoked_at", nil).
		Set("revoke_reason", nil).
		Where(squirrel.Eq{"user_id": session.UserID, "device_id": session.DeviceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build replace session sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetByID returns a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session by id sql: %w", err)
	}

	return r.scanSession(r.pool.QueryRow(ctx, sql, args...))
}

// GetByUserDevice returns the session row owned by the (user, device) pair.
func (r *SessionRepository) GetByUserDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID, "device_id": deviceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session by device sql: %w", err)
	}

	return r.scanSession(r.pool.QueryRow(ctx, sql, args...))
}

// ListByUser returns every session for the user, newest activity first.
// Revoked and expired rows are included; callers filter for active views.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("last_activity_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.DeviceID,
			&session.IPAddress,
			&session.UserAgent,
			&session.OperatingSystem,
			&session.CreatedAt,
			&session.LastActivityAt,
			&session.LastRefreshAt,
			&session.ExpiresAt,
			&session.RevokedAt,
			&session.RevokeReason,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch bumps the last-activity stamp. Best effort by contract; callers log
// failures instead of propagating them.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("last_activity_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks a session as revoked. Already-revoked rows keep their original
// revocation stamp.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string, at time.Time) error {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeBatch revokes the listed sessions owned by the user and returns how
// many rows changed state.
func (r *SessionRepository) RevokeBatch(ctx context.Context, userID string, sessionIDs []string, reason string, at time.Time) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	sql, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"user_id": userID, "id": sessionIDs}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build batch revoke sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("batch revoke sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// StoreEvent persists a session event record.
func (r *SessionRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	details, err := marshalSessionEventDetails(event.Details)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("auth.session_events").
		Columns("id", "session_id", "kind", "at", "ip", "user_agent", "details").
		Values(event.ID, event.SessionID, event.Kind, event.At, event.IP, event.UserAgent, details).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session event sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

func (r *SessionRepository) scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceID,
		&session.IPAddress,
		&session.UserAgent,
		&session.OperatingSystem,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.LastRefreshAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

func marshalSessionEventDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal session event details: %w", err)
	}
	return payload, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
