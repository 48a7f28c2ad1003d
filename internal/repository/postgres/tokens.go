package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

var refreshTokenColumns = []string{
	"id",
	"session_id",
	"user_id",
	"token_hash",
	"salt",
	"scopes",
	"created_at",
	"expires_at",
	"revoked_at",
	"replaced_by_id",
}

// TokenRepository implements port.TokenRepository for PostgreSQL.
type TokenRepository struct {
	pool    txBeginner
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a TokenRepository.
func NewTokenRepository(pool txBeginner) *TokenRepository {
	return &TokenRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateRefreshToken inserts a refresh token record.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	sql, args, err := r.insertTokenSQL(token)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetRefreshTokenByID returns a refresh token by its identifier.
func (r *TokenRepository) GetRefreshTokenByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	sql, args, err := r.builder.
		Select(refreshTokenColumns...).
		From("auth.refresh_tokens").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var token domain.RefreshToken
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&token.ID,
		&token.SessionID,
		&token.UserID,
		&token.TokenHash,
		&token.Salt,
		&token.Scopes,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.ReplacedByID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &token, nil
}

// Rotate atomically retires the presented token and installs its successor.
// The revoke UPDATE carries a revoked_at IS NULL guard; zero affected rows
// means another rotation already claimed the predecessor, which the caller
// must treat as token reuse.
func (r *TokenRepository) Rotate(ctx context.Context, oldTokenID string, next domain.RefreshToken, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	revokeSQL, revokeArgs, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at).
		Set("replaced_by_id", next.ID).
		Where(squirrel.Eq{"id": oldTokenID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke predecessor sql: %w", err)
	}

	tag, err := tx.Exec(ctx, revokeSQL, revokeArgs...)
	if err != nil {
		return fmt.Errorf("revoke predecessor token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrAlreadyRotated
	}

	insertSQL, insertArgs, err := r.insertTokenSQL(next)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
		return fmt.Errorf("insert successor token: %w", err)
	}

	touchSQL, touchArgs, err := r.builder.Update("auth.sessions").
		Set("last_activity_at", at).
		Set("last_refresh_at", at).
		Where(squirrel.Eq{"id": next.SessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}
	if _, err := tx.Exec(ctx, touchSQL, touchArgs...); err != nil {
		return fmt.Errorf("touch session on rotate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate tx: %w", err)
	}

	return nil
}

// RevokeBySession revokes every live refresh token belonging to the session
// and returns the number of tokens affected.
func (r *TokenRepository) RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int, error) {
	sql, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at).
		Where(squirrel.Eq{"session_id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke session tokens sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke session tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *TokenRepository) insertTokenSQL(token domain.RefreshToken) (string, []any, error) {
	sql, args, err := r.builder.Insert("auth.refresh_tokens").
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.SessionID,
			token.UserID,
			token.TokenHash,
			token.Salt,
			token.Scopes,
			token.CreatedAt,
			token.ExpiresAt,
			token.RevokedAt,
			token.ReplacedByID,
		).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert refresh token sql: %w", err)
	}
	return sql, args, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
