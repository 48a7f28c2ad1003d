package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFacebookTestServer(t *testing.T, debugJSON, profileJSON string, profileStatus int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/debug_token"):
			_, _ = w.Write([]byte(debugJSON))
		case strings.HasPrefix(r.URL.Path, "/me"):
			w.WriteHeader(profileStatus)
			_, _ = w.Write([]byte(profileJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFacebookValidatorHappyPath(t *testing.T) {
	srv := newFacebookTestServer(t,
		`{"data":{"app_id":"app-1","is_valid":true,"user_id":"fb-1"}}`,
		`{"id":"fb-1","name":"Jordan Example","email":"student@example.com"}`,
		http.StatusOK,
	)

	v := NewFacebookValidator("app-1", "secret").WithBaseURL(srv.URL)

	info, err := v.Validate(context.Background(), "fb-access-token")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if info.Provider != "facebook" || info.SubjectID != "fb-1" {
		t.Fatalf("unexpected identity: %+v", info)
	}
	if info.DisplayName != "Jordan Example" || info.Email != "student@example.com" {
		t.Fatalf("profile not mapped: %+v", info)
	}
}

func TestFacebookValidatorRejectsInvalidToken(t *testing.T) {
	srv := newFacebookTestServer(t,
		`{"data":{"app_id":"app-1","is_valid":false}}`,
		`{}`,
		http.StatusOK,
	)

	v := NewFacebookValidator("app-1", "secret").WithBaseURL(srv.URL)

	_, err := v.Validate(context.Background(), "fb-access-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestFacebookValidatorRejectsForeignApp(t *testing.T) {
	srv := newFacebookTestServer(t,
		`{"data":{"app_id":"other-app","is_valid":true,"user_id":"fb-1"}}`,
		`{}`,
		http.StatusOK,
	)

	v := NewFacebookValidator("app-1", "secret").WithBaseURL(srv.URL)

	_, err := v.Validate(context.Background(), "fb-access-token")
	if !errors.Is(err, ErrInvalidAudience) {
		t.Fatalf("expected ErrInvalidAudience, got %v", err)
	}
}

func TestFacebookValidatorProfileFailure(t *testing.T) {
	srv := newFacebookTestServer(t,
		`{"data":{"app_id":"app-1","is_valid":true,"user_id":"fb-1"}}`,
		`{"error":"boom"}`,
		http.StatusInternalServerError,
	)

	v := NewFacebookValidator("app-1", "secret").WithBaseURL(srv.URL)

	_, err := v.Validate(context.Background(), "fb-access-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	google := NewGoogleValidator("client-id")
	reg := NewRegistry(google)

	v, err := reg.Lookup("Google")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v.Name() != "google" {
		t.Fatalf("unexpected validator: %s", v.Name())
	}

	if _, err := reg.Lookup("twitter"); err == nil {
		t.Fatal("unknown provider must fail lookup")
	}
}
