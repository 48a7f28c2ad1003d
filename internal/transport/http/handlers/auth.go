package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// AuthHandler exposes the first-party authentication endpoints used by the
// Avancira SPA. Refresh tokens never appear in response bodies here: they ride
// an HttpOnly cookie scoped to the auth path.
type AuthHandler struct {
	cfg  *config.AppConfig
	auth *usecase.AuthService
	oidc *usecase.OIDCService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(cfg *config.AppConfig, auth *usecase.AuthService, oidc *usecase.OIDCService) *AuthHandler {
	return &AuthHandler{cfg: cfg, auth: auth, oidc: oidc}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler. The credential exchange is reachable as both
// /token and /login; older SPA builds use the latter.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.login)
	r.POST("/token", chain...)
	r.POST("/login", chain...)

	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	scopes := oauth.ParseScopes(req.Scope)
	if len(scopes) == 0 {
		scopes = h.cfg.OAuth.AllowedScopes
	}
	if err := oauth.ValidateScopes(scopes, h.cfg.OAuth.AllowedScopes); err != nil {
		RespondWithOAuthError(c, err)
		return
	}

	client := middleware.GetClientInfo(c)
	pair, err := h.auth.PasswordGrant(c.Request.Context(), strings.TrimSpace(req.Email), req.Password, client, scopes)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not eligible to sign in"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	h.respondWithPair(c, pair)
}

func (h *AuthHandler) refresh(c *gin.Context) {
	rawRefresh, err := c.Cookie(h.cfg.Cookie.Name)
	if err != nil || rawRefresh == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing refresh token"))
		return
	}

	// No scope parameter here: the new pair keeps the original grant.
	client := middleware.GetClientInfo(c)
	pair, err := h.auth.RefreshGrant(c.Request.Context(), rawRefresh, client, nil)
	if err != nil {
		h.clearRefreshCookie(c)
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid or expired refresh token"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not eligible to sign in"},
		}, http.StatusInternalServerError, "refresh failed")
		return
	}

	h.respondWithPair(c, pair)
}

func (h *AuthHandler) logout(c *gin.Context) {
	rawRefresh, err := c.Cookie(h.cfg.Cookie.Name)
	h.clearRefreshCookie(c)
	if err != nil || rawRefresh == "" {
		// Nothing to revoke; logout is still a success.
		c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
		return
	}

	if err := h.oidc.Revoke(c.Request.Context(), rawRefresh); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) respondWithPair(c *gin.Context, pair *domain.TokenPair) {
	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)
	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   pair.AccessExpiresIn,
		IDToken:     pair.IDToken,
	})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    token,
		Path:     h.cfg.Cookie.Path,
		Domain:   h.cfg.Cookie.Domain,
		Expires:  expiresAt,
		Secure:   h.cfg.Cookie.Secure,
		HttpOnly: true,
		SameSite: sameSiteMode(h.cfg.Cookie.SameSite),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    "",
		Path:     h.cfg.Cookie.Path,
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   -1,
		Secure:   h.cfg.Cookie.Secure,
		HttpOnly: true,
		SameSite: sameSiteMode(h.cfg.Cookie.SameSite),
	})
}

func sameSiteMode(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
