package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

// createTestKeyProvider creates a temporary RSA key pair and key provider for tests
func createTestKeyProvider(t *testing.T) *security.FileKeyProvider {
	t.Helper()

	tmpDir := t.TempDir()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	privateKeyPath := filepath.Join(tmpDir, "primary.pem")
	privateKeyPEM := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	privateKeyFile, err := os.Create(privateKeyPath)
	if err != nil {
		t.Fatalf("failed to create private key file: %v", err)
	}
	if err := pem.Encode(privateKeyFile, privateKeyPEM); err != nil {
		t.Fatalf("failed to encode private key: %v", err)
	}
	privateKeyFile.Close()

	keyProvider, err := security.NewFileKeyProvider(tmpDir)
	if err != nil {
		t.Fatalf("failed to create key provider: %v", err)
	}

	return keyProvider
}

type userKey struct {
	provider string
	subject  string
}

type testUserRepo struct {
	mu     sync.Mutex
	users  map[string]domain.User
	links  map[userKey]domain.ExternalLogin
	roles  map[string][]string
	logins int
}

func newTestUserRepo() *testUserRepo {
	return &testUserRepo{
		users: make(map[string]domain.User),
		links: make(map[userKey]domain.ExternalLogin),
		roles: make(map[string][]string),
	}
}

func (r *testUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *testUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.LastLogin = &at
		r.users[id] = user
		r.logins++
	}
	return nil
}

func (r *testUserRepo) ListRoles(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles[userID], nil
}

func (r *testUserRepo) GetExternalLogin(_ context.Context, provider, subjectID string) (*domain.ExternalLogin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if login, ok := r.links[userKey{provider, subjectID}]; ok {
		copy := login
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testUserRepo) LinkExternalLogin(_ context.Context, login domain.ExternalLogin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[userKey{login.Provider, login.SubjectID}] = login
	return nil
}

type deviceKey struct {
	userID   string
	deviceID string
}

type testSessionRepo struct {
	mu       sync.Mutex
	byID     map[string]domain.Session
	byDevice map[deviceKey]string
	events   []domain.SessionEvent
}

func newTestSessionRepo() *testSessionRepo {
	return &testSessionRepo{
		byID:     make(map[string]domain.Session),
		byDevice: make(map[deviceKey]string),
	}
}

func (r *testSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey{session.UserID, session.DeviceID}
	if _, exists := r.byDevice[key]; exists {
		return repository.ErrDuplicateDevice
	}
	r.byDevice[key] = session.ID
	r.byID[session.ID] = session
	return nil
}

func (r *testSessionRepo) Replace(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey{session.UserID, session.DeviceID}
	oldID, exists := r.byDevice[key]
	if !exists {
		return repository.ErrNotFound
	}
	delete(r.byID, oldID)
	r.byDevice[key] = session.ID
	r.byID[session.ID] = session
	return nil
}

func (r *testSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.byID[sessionID]; ok {
		copy := session
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testSessionRepo) GetByUserDevice(_ context.Context, userID, deviceID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byDevice[deviceKey{userID, deviceID}]; ok {
		session := r.byID[id]
		return &session, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testSessionRepo) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, session := range r.byID {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (r *testSessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.byID[sessionID]; ok {
		session.LastActivityAt = at
		r.byID[sessionID] = session
	}
	return nil
}

func (r *testSessionRepo) Revoke(_ context.Context, sessionID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.byID[sessionID]; ok && session.RevokedAt == nil {
		session.RevokedAt = &at
		session.RevokeReason = &reason
		r.byID[sessionID] = session
	}
	return nil
}

func (r *testSessionRepo) RevokeBatch(_ context.Context, userID string, sessionIDs []string, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, id := range sessionIDs {
		if session, ok := r.byID[id]; ok && session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &at
			session.RevokeReason = &reason
			r.byID[id] = session
			count++
		}
	}
	return count, nil
}

func (r *testSessionRepo) StoreEvent(_ context.Context, event domain.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *testSessionRepo) eventKinds(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, event := range r.events {
		if event.SessionID == sessionID {
			kinds = append(kinds, event.Kind)
		}
	}
	return kinds
}

type testTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newTestTokenRepo() *testTokenRepo {
	return &testTokenRepo{tokens: make(map[string]domain.RefreshToken)}
}

func (r *testTokenRepo) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = token
	return nil
}

func (r *testTokenRepo) GetRefreshTokenByID(_ context.Context, id string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens[id]; ok {
		copy := token
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testTokenRepo) Rotate(_ context.Context, oldTokenID string, next domain.RefreshToken, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tokens[oldTokenID]
	if !ok {
		return repository.ErrNotFound
	}
	if old.RevokedAt != nil {
		return repository.ErrAlreadyRotated
	}
	old.RevokedAt = &at
	nextID := next.ID
	old.ReplacedByID = &nextID
	r.tokens[oldTokenID] = old
	r.tokens[next.ID] = next
	return nil
}

func (r *testTokenRepo) RevokeBySession(_ context.Context, sessionID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.tokens {
		if token.SessionID == sessionID && token.RevokedAt == nil {
			token.RevokedAt = &at
			r.tokens[id] = token
			count++
		}
	}
	return count, nil
}

type testRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]string
}

func newTestRevocationStore() *testRevocationStore {
	return &testRevocationStore{revoked: make(map[string]string)}
}

func (s *testRevocationStore) MarkSessionRevoked(_ context.Context, sessionID string, reason string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sessionID] = reason
	return nil
}

func (s *testRevocationStore) IsSessionRevoked(_ context.Context, sessionID string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.revoked[sessionID]
	return ok, reason, nil
}

type testPublisher struct {
	mu       sync.Mutex
	revoked  []domain.SessionRevokedEvent
	reused   []domain.TokenReuseDetectedEvent
	linked   []domain.ExternalLoginLinkedEvent
	failNext error
}

func (p *testPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}
	p.revoked = append(p.revoked, event)
	return nil
}

func (p *testPublisher) PublishTokenReuseDetected(_ context.Context, event domain.TokenReuseDetectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reused = append(p.reused, event)
	return nil
}

func (p *testPublisher) PublishExternalLoginLinked(_ context.Context, event domain.ExternalLoginLinkedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linked = append(p.linked, event)
	return nil
}

type testCodeStore struct {
	mu     sync.Mutex
	grants map[string]domain.AuthorizationGrant
}

func newTestCodeStore() *testCodeStore {
	return &testCodeStore{grants: make(map[string]domain.AuthorizationGrant)}
}

func (s *testCodeStore) Save(_ context.Context, code string, grant domain.AuthorizationGrant, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[code] = grant
	return nil
}

func (s *testCodeStore) Consume(_ context.Context, code string) (*domain.AuthorizationGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.grants, code)
	return &grant, nil
}

type testEnv struct {
	cfg         *config.AppConfig
	passwords   *security.PasswordHasher
	users       *testUserRepo
	sessions    *testSessionRepo
	tokens      *testTokenRepo
	revocations *testRevocationStore
	publisher   *testPublisher
	codes       *testCodeStore
	sessionSvc  *SessionService
	auth        *AuthService
	oidc        *OIDCService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{}
	cfg.App.Name = "avancira-auth"
	cfg.JWT.Issuer = "https://auth.test"
	cfg.JWT.Audience = "avancira-api"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = 720 * time.Hour
	cfg.OAuth.AuthCodeTTL = 2 * time.Minute
	cfg.OAuth.AllowedScopes = []string{"openid", "profile", "email", "roles", "offline_access"}
	cfg.OAuth.SessionMaxLifetime = 2160 * time.Hour

	keyProvider := createTestKeyProvider(t)
	jwtManager := security.NewJWTManager(keyProvider)

	hasher, err := security.NewRefreshTokenHasher("test-hmac-secret")
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	// Minimal cost parameters keep the grant tests fast.
	passwords := security.NewPasswordHasher(security.Argon2Params{
		Time:      1,
		MemoryKiB: 64,
		Threads:   1,
	})

	users := newTestUserRepo()
	sessions := newTestSessionRepo()
	tokens := newTestTokenRepo()
	revocations := newTestRevocationStore()
	publisher := &testPublisher{}
	codes := newTestCodeStore()

	log := zap.NewNop()

	sessionSvc := NewSessionService(sessions, tokens, revocations, publisher, nil, log, 15*time.Minute)
	auth := NewAuthService(cfg, users, tokens, sessionSvc, nil, passwords, hasher, jwtManager, keyProvider.SigningKID(), oauth.DefaultDestinationPolicy(), publisher, nil, log)
	oidc := NewOIDCService(cfg, users, codes, auth, oauth.DefaultDestinationPolicy(), log)

	return &testEnv{
		cfg:         cfg,
		passwords:   passwords,
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		revocations: revocations,
		publisher:   publisher,
		codes:       codes,
		sessionSvc:  sessionSvc,
		auth:        auth,
		oidc:        oidc,
	}
}

func (e *testEnv) addUser(t *testing.T, id, email, password string, roles ...string) domain.User {
	t.Helper()

	hash := ""
	if password != "" {
		var err error
		hash, err = e.passwords.Hash(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
	}

	user := domain.User{
		ID:            id,
		Email:         email,
		DisplayName:   "Test User",
		PasswordHash:  hash,
		Status:        domain.UserStatusActive,
		EmailVerified: true,
		RegisteredAt:  time.Now().UTC(),
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if len(roles) > 0 {
		e.users.roles[id] = roles
	}
	return user
}

func testClient() domain.ClientInfo {
	return domain.ClientInfo{
		DeviceID:        "device-1",
		IPAddress:       "203.0.113.7",
		UserAgent:       "go-test",
		OperatingSystem: "linux",
	}
}

func splitForTest(raw string) (string, string, error) {
	return security.SplitRefreshToken(raw)
}

func stubIdentity(provider, subject, email, name string) *domain.ExternalLoginInfo {
	return &domain.ExternalLoginInfo{
		Provider:    provider,
		SubjectID:   subject,
		Email:       email,
		DisplayName: name,
	}
}

var errStub = errors.New("stub failure")
