package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/repository"
)

const authCodeBytes = 32

// AuthorizeRequest is a validated authorize endpoint call for an
// authenticated browser session.
type AuthorizeRequest struct {
	UserID      string
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
}

// OIDCService drives the authorize/token/revoke/userinfo protocol surface on
// top of AuthService and the one-time code store.
type OIDCService struct {
	cfg   *config.AppConfig
	users port.UserRepository
	codes port.AuthorizationCodeStore
	auth  *AuthService

	policy oauth.DestinationPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewOIDCService constructs an OIDCService.
func NewOIDCService(
	cfg *config.AppConfig,
	users port.UserRepository,
	codes port.AuthorizationCodeStore,
	auth *AuthService,
	policy oauth.DestinationPolicy,
	log *zap.Logger,
) *OIDCService {
	return &OIDCService{
		cfg:    cfg,
		users:  users,
		codes:  codes,
		auth:   auth,
		policy: policy,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *OIDCService) WithClock(now func() time.Time) *OIDCService {
	s.now = now
	return s
}

// Authorize validates an authorize call from an authenticated browser and
// mints a one-time code. Eligibility is re-checked against the current user
// record: a session that was valid at login time may have been disabled since.
func (s *OIDCService) Authorize(ctx context.Context, req AuthorizeRequest) (redirect string, err error) {
	if req.ClientID == "" {
		return "", oauth.InvalidRequest("client_id is required")
	}
	if req.RedirectURI == "" {
		return "", oauth.InvalidRequest("redirect_uri is required")
	}
	if err := oauth.ValidateScopes(req.Scopes, s.cfg.OAuth.AllowedScopes); err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", oauth.NewError(oauth.CodeAccessDenied, "sign-in required")
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !user.CanSignIn() {
		return "", oauth.NewError(oauth.CodeAccessDenied, "account is not eligible to sign in")
	}

	code, err := security.GenerateSecureToken(authCodeBytes)
	if err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}

	grant := domain.AuthorizationGrant{
		UserID:      user.ID,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scopes:      req.Scopes,
		IssuedAt:    s.now().UTC(),
	}
	if err := s.codes.Save(ctx, code, grant, s.cfg.OAuth.AuthCodeTTL); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}

	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", oauth.InvalidRequest("redirect_uri is malformed")
	}
	query := target.Query()
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	target.RawQuery = query.Encode()

	return target.String(), nil
}

// CodeGrant redeems a one-time authorization code. The redirect URI must
// match the one bound at authorize time; a consumed, expired, or unknown code
// is the same generic invalid_grant.
func (s *OIDCService) CodeGrant(ctx context.Context, code, redirectURI string, client domain.ClientInfo) (*domain.TokenPair, []string, error) {
	grant, err := s.codes.Consume(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, oauth.InvalidGrant()
		}
		return nil, nil, fmt.Errorf("consume authorization code: %w", err)
	}

	if redirectURI != "" && grant.RedirectURI != redirectURI {
		return nil, nil, oauth.InvalidGrant()
	}

	user, err := s.users.GetByID(ctx, grant.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, oauth.InvalidGrant()
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.CanSignIn() {
		return nil, nil, oauth.InvalidGrant()
	}

	pair, err := s.auth.IssueForUser(ctx, user, client, grant.Scopes)
	if err != nil {
		return nil, nil, err
	}

	return pair, grant.Scopes, nil
}

// Revoke terminates the session behind the presented refresh token. Per
// revocation endpoint semantics an unknown token is success: the endpoint
// never discloses whether a token ever existed.
func (s *OIDCService) Revoke(ctx context.Context, rawToken string) error {
	tokenID, _, err := security.SplitRefreshToken(rawToken)
	if err != nil {
		// Fall back to treating the whole value as a token id.
		tokenID = rawToken
	}

	stored, err := s.auth.tokens.GetRefreshTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	if err := s.auth.sessions.RevokeSession(ctx, stored.UserID, stored.SessionID, "token_revoked"); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	return nil
}

// UserInfo assembles the claim set the granted scopes unlock.
func (s *OIDCService) UserInfo(ctx context.Context, userID string, scopes []string) (map[string]any, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	claims := map[string]any{}
	if s.policy.Includes(oauth.ClaimSubject, scopes, oauth.DestinationUserInfo) {
		claims["sub"] = user.ID
	}
	if s.policy.Includes(oauth.ClaimName, scopes, oauth.DestinationUserInfo) {
		claims["name"] = user.DisplayName
	}
	if s.policy.Includes(oauth.ClaimEmail, scopes, oauth.DestinationUserInfo) {
		claims["email"] = user.Email
		claims["email_verified"] = user.EmailVerified
	}
	if s.policy.Includes(oauth.ClaimRole, scopes, oauth.DestinationUserInfo) {
		roles, err := s.users.ListRoles(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		claims["roles"] = roles
	}
	if s.policy.Includes(oauth.ClaimPhone, scopes, oauth.DestinationUserInfo) && user.Phone != nil {
		claims["phone_number"] = *user.Phone
		claims["phone_number_verified"] = user.PhoneVerified
	}

	return claims, nil
}
