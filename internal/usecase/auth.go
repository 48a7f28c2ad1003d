package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/logger"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/telemetry"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/provider"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled, locked, or pending verification.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidRefreshToken covers every refresh failure visible to a client:
	// unknown, expired, revoked, and reused tokens all collapse into it.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidExternalToken indicates the provider rejected the presented credential.
	ErrInvalidExternalToken = errors.New("invalid external token")
	// ErrEmailRequired indicates the provider did not supply an email for a first login.
	ErrEmailRequired = errors.New("external identity has no email")
	// ErrEmailMismatch indicates a linked provider identity now reports a
	// different email than the local account.
	ErrEmailMismatch = errors.New("external identity email does not match account")
)

const refreshSecretBytes = 32

// AuthService turns verified identities into token pairs: password, external,
// and refresh grants all funnel through the same session bookkeeping and
// signing path.
type AuthService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	tokens    port.TokenRepository
	sessions  *SessionService
	providers *provider.Registry
	passwords *security.PasswordHasher
	hasher    *security.RefreshTokenHasher
	jwt       *security.JWTManager
	kid       string
	policy    oauth.DestinationPolicy
	publisher port.EventPublisher
	metrics   *telemetry.Provider
	logger    *zap.Logger

	now func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	tokens port.TokenRepository,
	sessions *SessionService,
	providers *provider.Registry,
	passwords *security.PasswordHasher,
	hasher *security.RefreshTokenHasher,
	jwtManager *security.JWTManager,
	kid string,
	policy oauth.DestinationPolicy,
	publisher port.EventPublisher,
	metrics *telemetry.Provider,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:       cfg,
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		providers: providers,
		passwords: passwords,
		hasher:    hasher,
		jwt:       jwtManager,
		kid:       kid,
		policy:    policy,
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// PasswordGrant verifies an email/password credential and issues a token pair.
func (s *AuthService) PasswordGrant(ctx context.Context, email, password string, client domain.ClientInfo, scopes []string) (*domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveGrant(oauth.GrantPassword, "denied")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.ObserveGrant(oauth.GrantPassword, "denied")
		return nil, ErrInvalidCredentials
	}

	if !user.CanSignIn() {
		s.metrics.ObserveGrant(oauth.GrantPassword, "denied")
		return nil, ErrInactiveAccount
	}

	pair, err := s.IssueForUser(ctx, user, client, scopes)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveGrant(oauth.GrantPassword, "granted")
	return pair, nil
}

// ExternalGrant validates a third-party credential, locates or creates the
// local account, links the provider identity, and issues a token pair.
// Linking is idempotent: an already-linked identity is success, not an error.
func (s *AuthService) ExternalGrant(ctx context.Context, providerName, rawToken string, client domain.ClientInfo, scopes []string) (*domain.TokenPair, error) {
	validator, err := s.providers.Lookup(providerName)
	if err != nil {
		return nil, ErrInvalidExternalToken
	}

	info, err := validator.Validate(ctx, rawToken)
	if err != nil {
		s.logger.Info("external token validation failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		s.metrics.ObserveGrant("external", "denied")
		return nil, ErrInvalidExternalToken
	}

	user, created, err := s.resolveExternalUser(ctx, info)
	if err != nil {
		return nil, err
	}

	if !user.CanSignIn() {
		s.metrics.ObserveGrant("external", "denied")
		return nil, ErrInactiveAccount
	}

	if s.publisher != nil && created {
		event := domain.ExternalLoginLinkedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			Provider:    info.Provider,
			SubjectID:   info.SubjectID,
			LinkedAt:    s.now().UTC(),
			UserCreated: created,
		}
		if err := s.publisher.PublishExternalLoginLinked(ctx, event); err != nil {
			s.logger.Warn("publish external login linked failed", zap.Error(err))
		}
	}

	pair, err := s.IssueForUser(ctx, user, client, scopes)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveGrant("external", "granted")
	return pair, nil
}

// RefreshGrant rotates a presented refresh token and issues a fresh pair.
// The effective scope set is the request bounded by the scopes the token was
// originally granted with; an empty request keeps the original grant.
// Presenting a token that was already rotated away is treated as theft: the
// whole session is revoked, the incident is published and logged at elevated
// severity, and the caller sees the same generic failure as an expired token.
// A token revoked any other way (logout, user revocation) is simply dead.
func (s *AuthService) RefreshGrant(ctx context.Context, rawRefresh string, client domain.ClientInfo, scopes []string) (*domain.TokenPair, error) {
	tokenID, secret, err := security.SplitRefreshToken(rawRefresh)
	if err != nil {
		s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.tokens.GetRefreshTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if !s.hasher.Verify(secret, stored.Salt, stored.TokenHash) {
		s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		return nil, ErrInvalidRefreshToken
	}

	now := s.now().UTC()

	if stored.IsRevoked() {
		// Only a token retired by rotation proves the raw value was handed
		// out twice. Anything else is a stale client retrying after an
		// ordinary revocation.
		if stored.WasRotated() {
			s.handleTokenReuse(ctx, stored, client)
		} else {
			s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		}
		return nil, ErrInvalidRefreshToken
	}
	if stored.IsExpired(now) {
		s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		return nil, ErrInvalidRefreshToken
	}

	active, err := s.sessions.ValidateSession(ctx, stored.UserID, stored.SessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.CanSignIn() {
		s.metrics.ObserveGrant(oauth.GrantRefreshToken, "denied")
		return nil, ErrInactiveAccount
	}

	effective := oauth.NarrowScopes(scopes, stored.Scopes)

	// The successor inherits the original grant, not the narrowed request:
	// a client that asks for less today can still refresh for the full set
	// tomorrow.
	next, rawNext, err := s.mintRefreshToken(stored.SessionID, stored.UserID, stored.Scopes)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, stored.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyRotated) {
			s.handleTokenReuse(ctx, stored, client)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.sessions.RecordEvent(ctx, stored.SessionID, domain.SessionEventRotated, client, map[string]any{
		"token_id": stored.ID,
	})

	accessToken, idToken, expiresIn, err := s.signTokens(ctx, user, stored.SessionID, effective)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveGrant(oauth.GrantRefreshToken, "granted")
	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     rawNext,
		IDToken:          idToken,
		AccessExpiresIn:  expiresIn,
		RefreshExpiresAt: next.ExpiresAt,
		Scopes:           effective,
	}, nil
}

// IssueForUser creates or supersedes the device session and signs a full
// token pair for an already-verified user.
func (s *AuthService) IssueForUser(ctx context.Context, user *domain.User, client domain.ClientInfo, scopes []string) (*domain.TokenPair, error) {
	now := s.now().UTC()

	session, err := s.sessions.StoreSession(ctx, user.ID, client, now.Add(s.cfg.OAuth.SessionMaxLifetime))
	if err != nil {
		return nil, err
	}

	refresh, rawRefresh, err := s.mintRefreshToken(session.ID, user.ID, scopes)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	accessToken, idToken, expiresIn, err := s.signTokens(ctx, user, session.ID, scopes)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		IDToken:          idToken,
		AccessExpiresIn:  expiresIn,
		RefreshExpiresAt: refresh.ExpiresAt,
		Scopes:           scopes,
	}, nil
}

// ParseAccessToken validates a signed access token against the configured
// issuer and audience.
func (s *AuthService) ParseAccessToken(signed string) (*security.AccessTokenClaims, error) {
	return s.jwt.VerifyAccessToken(signed, s.cfg.JWT.Issuer, s.cfg.JWT.Audience)
}

func (s *AuthService) resolveExternalUser(ctx context.Context, info *domain.ExternalLoginInfo) (*domain.User, bool, error) {
	login, err := s.users.GetExternalLogin(ctx, info.Provider, info.SubjectID)
	if err == nil {
		user, err := s.users.GetByID(ctx, login.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("lookup linked user: %w", err)
		}
		// A provider identity whose email drifted away from the account it is
		// linked to is suspicious; reject rather than silently proceed.
		if info.Email != "" && !strings.EqualFold(info.Email, user.Email) {
			return nil, false, ErrEmailMismatch
		}
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup external login: %w", err)
	}

	if info.Email == "" {
		return nil, false, ErrEmailRequired
	}

	now := s.now().UTC()
	created := false

	user, err := s.users.GetByEmail(ctx, info.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &domain.User{
			ID:            uuid.NewString(),
			Email:         info.Email,
			DisplayName:   info.DisplayName,
			Status:        domain.UserStatusActive,
			EmailVerified: true,
			RegisteredAt:  now,
		}
		if err := s.users.Create(ctx, *user); err != nil {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		created = true
	} else if err != nil {
		return nil, false, fmt.Errorf("lookup user by email: %w", err)
	}

	link := domain.ExternalLogin{
		Provider:  info.Provider,
		SubjectID: info.SubjectID,
		UserID:    user.ID,
		Email:     info.Email,
		CreatedAt: now,
	}
	if err := s.users.LinkExternalLogin(ctx, link); err != nil {
		return nil, false, fmt.Errorf("link external login: %w", err)
	}

	return user, created, nil
}

func (s *AuthService) mintRefreshToken(sessionID, userID string, scopes []string) (domain.RefreshToken, string, error) {
	secret, err := security.GenerateSecureToken(refreshSecretBytes)
	if err != nil {
		return domain.RefreshToken{}, "", fmt.Errorf("generate refresh secret: %w", err)
	}

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return domain.RefreshToken{}, "", fmt.Errorf("generate refresh salt: %w", err)
	}

	now := s.now().UTC()
	token := domain.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		TokenHash: s.hasher.Hash(secret, salt),
		Salt:      salt,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.JWT.RefreshTokenTTL),
	}

	return token, security.ComposeRefreshToken(token.ID, secret), nil
}

func (s *AuthService) signTokens(ctx context.Context, user *domain.User, sessionID string, scopes []string) (accessToken, idToken string, expiresIn int, err error) {
	roles, err := s.users.ListRoles(ctx, user.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("list roles: %w", err)
	}

	now := s.now().UTC()
	ttl := s.cfg.JWT.AccessTokenTTL

	opts := security.AccessTokenOptions{
		UserID:    user.ID,
		SessionID: sessionID,
		Scopes:    scopes,
		Issuer:    s.cfg.JWT.Issuer,
		Audience:  []string{s.cfg.JWT.Audience},
		TTL:       ttl,
		IssuedAt:  now,
	}
	if s.policy.Includes(oauth.ClaimName, scopes, oauth.DestinationAccessToken) {
		opts.Name = user.DisplayName
	}
	if s.policy.Includes(oauth.ClaimEmail, scopes, oauth.DestinationAccessToken) {
		opts.Email = user.Email
		opts.EmailVerified = user.EmailVerified
	}
	if s.policy.Includes(oauth.ClaimRole, scopes, oauth.DestinationAccessToken) {
		opts.Roles = roles
	}

	claims, err := security.NewAccessTokenClaims(opts)
	if err != nil {
		return "", "", 0, err
	}

	accessToken, err = s.jwt.SignAccessToken(s.kid, claims)
	if err != nil {
		return "", "", 0, err
	}

	if oauth.HasScope(scopes, oauth.ScopeOpenID) {
		idClaims := &security.IDTokenClaims{
			AuthTime: now.Unix(),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID,
				Issuer:    s.cfg.JWT.Issuer,
				Audience:  []string{s.cfg.JWT.Audience},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				ID:        uuid.NewString(),
			},
		}
		if s.policy.Includes(oauth.ClaimName, scopes, oauth.DestinationIDToken) {
			idClaims.Name = user.DisplayName
		}
		if s.policy.Includes(oauth.ClaimEmail, scopes, oauth.DestinationIDToken) {
			idClaims.Email = user.Email
			idClaims.EmailVerified = user.EmailVerified
		}

		idToken, err = s.jwt.SignIDToken(s.kid, idClaims)
		if err != nil {
			return "", "", 0, err
		}
	}

	return accessToken, idToken, int(ttl.Seconds()), nil
}

func (s *AuthService) handleTokenReuse(ctx context.Context, stored *domain.RefreshToken, client domain.ClientInfo) {
	now := s.now().UTC()

	s.logger.Error("refresh token reuse detected, revoking session",
		zap.String("token_id", stored.ID),
		zap.String("session_id", stored.SessionID),
		zap.String("user_id", stored.UserID),
		zap.String("ip", logger.MaskIP(client.IPAddress)),
	)
	s.metrics.ObserveTokenReuse()
	s.metrics.ObserveGrant(oauth.GrantRefreshToken, "reuse")

	s.sessions.RecordEvent(ctx, stored.SessionID, domain.SessionEventReuseDetected, client, map[string]any{
		"token_id": stored.ID,
	})

	if err := s.sessions.RevokeSession(ctx, stored.UserID, stored.SessionID, "token_reuse"); err != nil {
		s.logger.Error("revoke session after token reuse failed",
			zap.String("session_id", stored.SessionID),
			zap.Error(err),
		)
	}

	if s.publisher != nil {
		event := domain.TokenReuseDetectedEvent{
			EventID:    uuid.NewString(),
			SessionID:  stored.SessionID,
			UserID:     stored.UserID,
			TokenID:    stored.ID,
			DetectedAt: now,
			IPAddress:  client.IPAddress,
			UserAgent:  client.UserAgent,
		}
		if err := s.publisher.PublishTokenReuseDetected(ctx, event); err != nil {
			s.logger.Warn("publish token reuse failed", zap.Error(err))
		}
	}
}
