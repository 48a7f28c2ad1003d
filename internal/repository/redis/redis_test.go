package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)

	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, srv
}

func TestSessionRevocationStoreRoundTrip(t *testing.T) {
	client, srv := newTestClient(t)
	store := NewSessionRevocationStore(client)
	ctx := context.Background()

	revoked, reason, err := store.IsSessionRevoked(ctx, "sess-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if revoked || reason != "" {
		t.Fatalf("expected no mark, got revoked=%v reason=%q", revoked, reason)
	}

	if err := store.MarkSessionRevoked(ctx, "sess-1", "token_reuse", 15*time.Minute); err != nil {
		t.Fatalf("mark: %v", err)
	}

	revoked, reason, err = store.IsSessionRevoked(ctx, "sess-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !revoked {
		t.Fatal("expected session to be marked revoked")
	}
	if reason != "token_reuse" {
		t.Fatalf("expected reason token_reuse, got %q", reason)
	}

	srv.FastForward(16 * time.Minute)

	revoked, _, err = store.IsSessionRevoked(ctx, "sess-1")
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if revoked {
		t.Fatal("expected mark to expire with the TTL")
	}
}

func TestAuthorizationCodeStoreConsumeOnce(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewAuthorizationCodeStore(client)
	ctx := context.Background()

	grant := domain.AuthorizationGrant{
		UserID:      "user-1",
		ClientID:    "spa",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid", "profile"},
		IssuedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Save(ctx, "code-1", grant, 2*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Consume(ctx, "code-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.UserID != grant.UserID || got.ClientID != grant.ClientID || got.RedirectURI != grant.RedirectURI {
		t.Fatalf("grant mismatch: %+v", got)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "openid" {
		t.Fatalf("scopes mismatch: %v", got.Scopes)
	}

	if _, err := store.Consume(ctx, "code-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second consume should fail with ErrNotFound, got %v", err)
	}
}

func TestAuthorizationCodeStoreExpiry(t *testing.T) {
	client, srv := newTestClient(t)
	store := NewAuthorizationCodeStore(client)
	ctx := context.Background()

	grant := domain.AuthorizationGrant{UserID: "user-1", ClientID: "spa"}
	if err := store.Save(ctx, "code-2", grant, 2*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	srv.FastForward(3 * time.Minute)

	if _, err := store.Consume(ctx, "code-2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired code should fail with ErrNotFound, got %v", err)
	}
}
