package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

type stubSessionRepo struct {
	sessions map[string]domain.Session
}

func (r *stubSessionRepo) Create(context.Context, domain.Session) error  { return nil }
func (r *stubSessionRepo) Replace(context.Context, domain.Session) error { return nil }

func (r *stubSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	if session, ok := r.sessions[sessionID]; ok {
		copy := session
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepo) GetByUserDevice(context.Context, string, string) (*domain.Session, error) {
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepo) ListByUser(context.Context, string) ([]domain.Session, error) {
	return nil, nil
}

func (r *stubSessionRepo) Touch(context.Context, string, time.Time) error { return nil }

func (r *stubSessionRepo) Revoke(context.Context, string, string, time.Time) error { return nil }

func (r *stubSessionRepo) RevokeBatch(context.Context, string, []string, string, time.Time) (int, error) {
	return 0, nil
}

func (r *stubSessionRepo) StoreEvent(context.Context, domain.SessionEvent) error { return nil }

type stubRevocationStore struct {
	revoked map[string]string
}

func (s *stubRevocationStore) MarkSessionRevoked(_ context.Context, sessionID, reason string, _ time.Duration) error {
	s.revoked[sessionID] = reason
	return nil
}

func (s *stubRevocationStore) IsSessionRevoked(_ context.Context, sessionID string) (bool, string, error) {
	reason, ok := s.revoked[sessionID]
	return ok, reason, nil
}

type sessionFixture struct {
	router      *gin.Engine
	sessions    *stubSessionRepo
	revocations *stubRevocationStore
	token       string
	sessionID   string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpDir := t.TempDir()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	keyFile, err := os.Create(filepath.Join(tmpDir, "primary.pem"))
	if err != nil {
		t.Fatalf("create key file: %v", err)
	}
	if err := pem.Encode(keyFile, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}); err != nil {
		t.Fatalf("encode key: %v", err)
	}
	keyFile.Close()

	keyProvider, err := security.NewFileKeyProvider(tmpDir)
	if err != nil {
		t.Fatalf("new key provider: %v", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	cfg := &config.AppConfig{}
	cfg.JWT.Issuer = "https://auth.test"
	cfg.JWT.Audience = "avancira-api"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute

	now := time.Now().UTC()
	sessionID := "sess-1"
	sessions := &stubSessionRepo{sessions: map[string]domain.Session{
		sessionID: {
			ID:             sessionID,
			UserID:         "user-1",
			DeviceID:       "device-1",
			CreatedAt:      now,
			LastActivityAt: now,
			ExpiresAt:      now.Add(24 * time.Hour),
		},
	}}
	revocations := &stubRevocationStore{revoked: make(map[string]string)}

	log := zap.NewNop()
	sessionSvc := usecase.NewSessionService(sessions, nil, revocations, nil, nil, log, 15*time.Minute)
	auth := usecase.NewAuthService(cfg, nil, nil, sessionSvc, nil, nil, nil, jwtManager, keyProvider.SigningKID(), oauth.DefaultDestinationPolicy(), nil, nil, log)

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:    "user-1",
		SessionID: sessionID,
		Scopes:    []string{"openid"},
		Issuer:    cfg.JWT.Issuer,
		Audience:  []string{cfg.JWT.Audience},
		TTL:       cfg.JWT.AccessTokenTTL,
		IssuedAt:  now,
	})
	if err != nil {
		t.Fatalf("new claims: %v", err)
	}
	token, err := jwtManager.SignAccessToken(keyProvider.SigningKID(), claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	router := gin.New()
	router.GET("/protected", RequireSession(auth, sessionSvc, revocations, log), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return &sessionFixture{
		router:      router,
		sessions:    sessions,
		revocations: revocations,
		token:       token,
		sessionID:   sessionID,
	}
}

func (f *sessionFixture) get(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	f.router.ServeHTTP(w, req)
	return w
}

func TestRequireSessionAcceptsLiveSession(t *testing.T) {
	f := newSessionFixture(t)

	if w := f.get(t); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a live session, got %d", w.Code)
	}
}

func TestRequireSessionRejectsRevokedSession(t *testing.T) {
	f := newSessionFixture(t)

	// Revoke the session in the store; the token itself stays valid.
	now := time.Now().UTC()
	reason := "user_revoked"
	session := f.sessions.sessions[f.sessionID]
	session.RevokedAt = &now
	session.RevokeReason = &reason
	f.sessions.sessions[f.sessionID] = session

	w := f.get(t)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a revoked session, got %d", w.Code)
	}
}

func TestRequireSessionUsesRevocationFastPath(t *testing.T) {
	f := newSessionFixture(t)

	if err := f.revocations.MarkSessionRevoked(context.Background(), f.sessionID, "token_reuse", time.Minute); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}

	w := f.get(t)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 via the revocation cache, got %d", w.Code)
	}
}

func TestRequireSessionRejectsMissingBearer(t *testing.T) {
	f := newSessionFixture(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", w.Code)
	}
}
