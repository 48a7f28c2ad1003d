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

const externalLoginConstraint = "external_logins_pkey"

var userColumns = []string{
	"id",
	"email",
	"display_name",
	"phone",
	"password_hash",
	"status",
	"email_verified",
	"phone_verified",
	"registered_at",
	"last_login",
}

// UserRepository implements port.UserRepository for PostgreSQL.
type UserRepository struct {
	pool    txBeginner
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool txBeginner) *UserRepository {
	return &UserRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a user record.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	sql, args, err := r.builder.Insert("auth.users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.DisplayName,
			user.Phone,
			user.PasswordHash,
			user.Status,
			user.EmailVerified,
			user.PhoneVerified,
			user.RegisteredAt,
			user.LastLogin,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByEmail returns a user by email. Emails are stored lowercased, so the
// lookup normalizes via LOWER on the parameter only.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Expr("email = LOWER(?)", email))
}

// UpdateLastLogin stamps the most recent successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	sql, args, err := r.builder.Update("auth.users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ListRoles returns the role names granted to the user.
func (r *UserRepository) ListRoles(ctx context.Context, userID string) ([]string, error) {
	sql, args, err := r.builder.
		Select("r.name").
		From("auth.roles r").
		Join("auth.user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// GetExternalLogin returns the provider link for (provider, subject).
func (r *UserRepository) GetExternalLogin(ctx context.Context, provider, subjectID string) (*domain.ExternalLogin, error) {
	sql, args, err := r.builder.
		Select("provider", "subject_id", "user_id", "email", "created_at").
		From("auth.external_logins").
		Where(squirrel.Eq{"provider": provider, "subject_id": subjectID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select external login sql: %w", err)
	}

	var login domain.ExternalLogin
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&login.Provider,
		&login.SubjectID,
		&login.UserID,
		&login.Email,
		&login.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan external login: %w", err)
	}

	return &login, nil
}

// LinkExternalLogin records a provider identity link for a local account.
func (r *UserRepository) LinkExternalLogin(ctx context.Context, login domain.ExternalLogin) error {
	sql, args, err := r.builder.Insert("auth.external_logins").
		Columns("provider", "subject_id", "user_id", "email", "created_at").
		Values(login.Provider, login.SubjectID, login.UserID, login.Email, login.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert external login sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err, externalLoginConstraint) {
			return nil
		}
		return fmt.Errorf("insert external login: %w", err)
	}

	return nil
}

func (r *UserRepository) getBy(ctx context.Context, pred any) (*domain.User, error) {
	sql, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Phone,
		&user.PasswordHash,
		&user.Status,
		&user.EmailVerified,
		&user.PhoneVerified,
		&user.RegisteredAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
