package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

const loginPath = "/login"

// ConnectHandler exposes the OAuth 2.0 / OIDC protocol surface: authorize,
// token, revoke, and userinfo. Unlike the first-party endpoints these speak
// form encoding and RFC 6749 error bodies.
type ConnectHandler struct {
	cfg  *config.AppConfig
	auth *usecase.AuthService
	oidc *usecase.OIDCService
}

// NewConnectHandler constructs ConnectHandler.
func NewConnectHandler(cfg *config.AppConfig, auth *usecase.AuthService, oidc *usecase.OIDCService) *ConnectHandler {
	return &ConnectHandler{cfg: cfg, auth: auth, oidc: oidc}
}

// RegisterRoutes binds the protocol routes. The authorize endpoint takes the
// optional session middleware so unauthenticated browsers are redirected to
// login instead of rejected; userinfo requires a validated session.
func (h *ConnectHandler) RegisterRoutes(r *gin.RouterGroup, optionalSession, requireSession gin.HandlerFunc) {
	r.GET("/authorize", optionalSession, h.authorize)
	r.POST("/authorize", optionalSession, h.authorize)
	r.POST("/token", h.token)
	r.POST("/revoke", h.revoke)
	r.GET("/userinfo", requireSession, h.userinfo)
	r.POST("/userinfo", requireSession, h.userinfo)
}

// authorize accepts its parameters from the query string or, for POST, the
// form body; ParseForm merges both.
func (h *ConnectHandler) authorize(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		RespondWithOAuthError(c, oauth.InvalidRequest("malformed form body"))
		return
	}
	params := c.Request.Form

	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		// Send the browser to login and bring it back with the same query.
		target := loginPath
		if encoded := params.Encode(); encoded != "" {
			target += "?return_url=" + url.QueryEscape(c.Request.URL.Path+"?"+encoded)
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	redirect, err := h.oidc.Authorize(c.Request.Context(), usecase.AuthorizeRequest{
		UserID:      userID,
		ClientID:    params.Get("client_id"),
		RedirectURI: params.Get("redirect_uri"),
		Scopes:      oauth.ParseScopes(params.Get("scope")),
		State:       params.Get("state"),
	})
	if err != nil {
		RespondWithOAuthError(c, err)
		return
	}

	c.Redirect(http.StatusFound, redirect)
}

func (h *ConnectHandler) token(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		RespondWithOAuthError(c, oauth.InvalidRequest("malformed form body"))
		return
	}

	req, err := oauth.ParseTokenRequest(c.Request.PostForm)
	if err != nil {
		RespondWithOAuthError(c, err)
		return
	}

	client := middleware.GetClientInfo(c)

	var pair *domain.TokenPair

	switch req.GrantType {
	case oauth.GrantAuthorizationCode:
		pair, _, err = h.oidc.CodeGrant(c.Request.Context(), req.Code, req.RedirectURI, client)
	case oauth.GrantRefreshToken:
		// The grant bounds the request by the originally granted scope set;
		// an empty request keeps the original grant.
		if err = oauth.ValidateScopes(req.Scopes, h.cfg.OAuth.AllowedScopes); err == nil {
			pair, err = h.auth.RefreshGrant(c.Request.Context(), req.RefreshToken, client, req.Scopes)
		}
	case oauth.GrantPassword:
		scopes := req.Scopes
		if len(scopes) == 0 {
			scopes = h.cfg.OAuth.AllowedScopes
		}
		if err = oauth.ValidateScopes(scopes, h.cfg.OAuth.AllowedScopes); err == nil {
			pair, err = h.auth.PasswordGrant(c.Request.Context(), req.Username, req.Password, client, scopes)
		}
	}
	if err != nil {
		RespondWithOAuthError(c, mapGrantError(err))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, oauth.NewTokenResponse(pair.AccessToken, pair.RefreshToken, pair.IDToken, pair.AccessExpiresIn, pair.Scopes))
}

// revoke always answers 200 for well-formed requests: the endpoint never
// discloses whether the presented token existed.
func (h *ConnectHandler) revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		RespondWithOAuthError(c, oauth.InvalidRequest("token is required"))
		return
	}

	if err := h.oidc.Revoke(c.Request.Context(), token); err != nil {
		RespondWithOAuthError(c, oauth.ServerError())
		return
	}

	c.Status(http.StatusOK)
}

func (h *ConnectHandler) userinfo(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	info, err := h.oidc.UserInfo(c.Request.Context(), claims.UserID, oauth.ParseScopes(claims.Scope))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "userinfo failed"))
		return
	}

	c.JSON(http.StatusOK, info)
}
