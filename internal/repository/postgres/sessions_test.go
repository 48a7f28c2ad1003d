package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

func testSession(now time.Time) domain.Session {
	return domain.Session{
		ID:             "sess-1",
		UserID:         "user-1",
		DeviceID:       "device-1",
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(30 * 24 * time.Hour),
	}
}

func TestSessionRepositoryCreateMapsDuplicateDevice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO auth.sessions").
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{
			Code:           uniqueViolationCode,
			ConstraintName: sessionsDeviceConstraint,
		})

	repo := NewSessionRepository(mock)
	err = repo.Create(context.Background(), testSession(time.Now()))
	if !errors.Is(err, repository.ErrDuplicateDevice) {
		t.Fatalf("expected ErrDuplicateDevice, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryCreatePropagatesOtherErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO auth.sessions").
		WithArgs(anyArgs(12)...).
		WillReturnError(errors.New("connection reset"))

	repo := NewSessionRepository(mock)
	err = repo.Create(context.Background(), testSession(time.Now()))
	if err == nil || errors.Is(err, repository.ErrDuplicateDevice) {
		t.Fatalf("expected generic failure, got %v", err)
	}
}

func TestSessionRepositoryReplaceRequiresExistingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE auth.sessions").
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewSessionRepository(mock)
	err = repo.Replace(context.Background(), testSession(time.Now()))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepositoryRevokeBatchCountsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE auth.sessions").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	repo := NewSessionRepository(mock)
	count, err := repo.RevokeBatch(context.Background(), "user-1", []string{"s1", "s2", "s3"}, "user_logout", time.Now())
	if err != nil {
		t.Fatalf("revoke batch: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked rows, got %d", count)
	}
}

func TestSessionRepositoryRevokeBatchEmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	count, err := repo.RevokeBatch(context.Background(), "user-1", nil, "user_logout", time.Now())
	if err != nil {
		t.Fatalf("revoke batch: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries issued: %v", err)
	}
}
