package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"
)

func newGoogleTestValidator(t *testing.T, tokenInfoJSON string) *GoogleValidator {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenInfoJSON))
	}))
	t.Cleanup(srv.Close)

	return NewGoogleValidator("expected-client-id",
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
}

func TestGoogleValidatorAcceptsMatchingAudience(t *testing.T) {
	v := newGoogleTestValidator(t, `{
		"audience": "expected-client-id",
		"user_id": "google-sub-1",
		"email": "tutor@example.com",
		"expires_in": 3500
	}`)

	info, err := v.Validate(context.Background(), "raw-id-token")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if info.Provider != "google" {
		t.Fatalf("provider mismatch: %q", info.Provider)
	}
	if info.SubjectID != "google-sub-1" || info.Email != "tutor@example.com" {
		t.Fatalf("unexpected identity: %+v", info)
	}
}

func TestGoogleValidatorRejectsWrongAudience(t *testing.T) {
	v := newGoogleTestValidator(t, `{
		"audience": "someone-else",
		"user_id": "google-sub-1",
		"email": "tutor@example.com",
		"expires_in": 3500
	}`)

	_, err := v.Validate(context.Background(), "raw-id-token")
	if !errors.Is(err, ErrInvalidAudience) {
		t.Fatalf("expected ErrInvalidAudience, got %v", err)
	}
}

func TestGoogleValidatorRejectsExpiredToken(t *testing.T) {
	v := newGoogleTestValidator(t, `{
		"audience": "expected-client-id",
		"user_id": "google-sub-1",
		"email": "tutor@example.com",
		"expires_in": 0
	}`)

	_, err := v.Validate(context.Background(), "raw-id-token")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
