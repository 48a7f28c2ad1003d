package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/provider"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// ExternalHandler exchanges provider-issued tokens for first-party sessions.
type ExternalHandler struct {
	cfg       *config.AppConfig
	auth      *AuthHandler
	service   *usecase.AuthService
	providers *provider.Registry
}

// NewExternalHandler constructs ExternalHandler.
func NewExternalHandler(cfg *config.AppConfig, auth *AuthHandler, service *usecase.AuthService, providers *provider.Registry) *ExternalHandler {
	return &ExternalHandler{cfg: cfg, auth: auth, service: service, providers: providers}
}

// RegisterRoutes binds the external login routes. The scripted login endpoint
// takes the CSRF middleware; the provider callback cannot carry the custom
// header and is mounted without it. Providers redirect back with either a
// GET or a form POST depending on their response mode.
func (h *ExternalHandler) RegisterRoutes(r *gin.RouterGroup, csrf gin.HandlerFunc) {
	r.POST("/external-login", csrf, h.externalLogin)
	r.GET("/external-callback", h.externalCallback)
	r.POST("/external-callback", h.externalCallback)
}

func (h *ExternalHandler) externalLogin(c *gin.Context) {
	var req ExternalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "provider and token are required"))
		return
	}

	h.exchange(c, req.Provider, req.Token, req.Scope)
}

// externalCallback accepts the request a provider redirect lands with:
// query parameters on GET, form fields on POST.
func (h *ExternalHandler) externalCallback(c *gin.Context) {
	read := c.Query
	if c.Request.Method == http.MethodPost {
		read = c.PostForm
	}

	providerName := read("provider")
	token := read("token")
	if providerName == "" || token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "provider and token are required"))
		return
	}

	h.exchange(c, providerName, token, read("scope"))
}

func (h *ExternalHandler) exchange(c *gin.Context, providerName, token, scope string) {
	if _, err := h.providers.Lookup(providerName); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown identity provider"))
		return
	}

	scopes := oauth.ParseScopes(scope)
	if len(scopes) == 0 {
		scopes = h.cfg.OAuth.AllowedScopes
	}
	if err := oauth.ValidateScopes(scopes, h.cfg.OAuth.AllowedScopes); err != nil {
		RespondWithOAuthError(c, err)
		return
	}

	client := middleware.GetClientInfo(c)
	pair, err := h.service.ExternalGrant(c.Request.Context(), providerName, token, client, scopes)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidExternalToken, Status: http.StatusUnauthorized, Message: "provider token rejected"},
			{Err: usecase.ErrEmailRequired, Status: http.StatusUnprocessableEntity, Message: "provider identity has no email"},
			{Err: usecase.ErrEmailMismatch, Status: http.StatusConflict, Message: "provider identity email does not match account"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not eligible to sign in"},
		}, http.StatusInternalServerError, "external login failed")
		return
	}

	h.auth.respondWithPair(c, pair)
}
