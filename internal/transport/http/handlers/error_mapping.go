package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// RespondWithOAuthError writes an RFC 6749 error body. Typed protocol errors
// keep their code and description; anything else becomes server_error so no
// internal detail leaks onto the wire.
func RespondWithOAuthError(c *gin.Context, err error) {
	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		oerr = oauth.ServerError()
	}
	c.JSON(oauthStatus(oerr.Code), oerr)
}

func oauthStatus(code string) int {
	switch code {
	case oauth.CodeInvalidClient:
		return http.StatusUnauthorized
	case oauth.CodeAccessDenied:
		return http.StatusForbidden
	case oauth.CodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// mapGrantError translates usecase grant failures into OAuth protocol errors.
// Credential and token failures collapse into the generic invalid_grant.
func mapGrantError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrInvalidRefreshToken),
		errors.Is(err, usecase.ErrInvalidExternalToken):
		return oauth.InvalidGrant()
	case errors.Is(err, usecase.ErrInactiveAccount):
		return oauth.NewError(oauth.CodeAccessDenied, "account is not eligible to sign in")
	case errors.Is(err, usecase.ErrEmailRequired):
		return oauth.InvalidRequest("external identity has no verified email")
	case errors.Is(err, usecase.ErrEmailMismatch):
		return oauth.InvalidRequest("external identity email does not match account")
	default:
		return err
	}
}
