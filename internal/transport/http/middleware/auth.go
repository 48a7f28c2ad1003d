package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireSession validates the bearer token and the session it is bound to.
// A token without a session binding fails closed: only tokens minted through
// the normal grant path carry one. Rejections stay generic so a caller cannot
// distinguish a revoked session from an invalid token.
func RequireSession(
	auth *usecase.AuthService,
	sessions *usecase.SessionService,
	revocations port.SessionRevocationStore,
	log *zap.Logger,
) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing or malformed authorization header"))
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
			return
		}

		if claims.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "session revoked or expired"))
			return
		}

		// Fast path: the revocation cache answers without touching Postgres.
		revoked, reason, err := revocations.IsSessionRevoked(c.Request.Context(), claims.SessionID)
		if err != nil {
			log.Warn("revocation cache lookup failed",
				zap.String("session_id", claims.SessionID),
				zap.Error(err),
			)
		}
		if revoked {
			log.Info("rejected revoked session",
				zap.String("session_id", claims.SessionID),
				zap.String("reason", reason),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "session revoked or expired"))
			return
		}

		active, err := sessions.ValidateSession(c.Request.Context(), claims.UserID, claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}
		if !active {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "session revoked or expired"))
			return
		}

		sessions.UpdateLastActivity(c.Request.Context(), claims.SessionID)

		c.Set(UserIDKey, claims.UserID)
		c.Set(SessionIDKey, claims.SessionID)
		c.Set(ClaimsKey, claims)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// OptionalSession populates the context when a valid bearer token and session
// are presented but never rejects the request. Handlers that want to redirect
// unauthenticated browsers instead of failing with 401 mount this variant.
func OptionalSession(
	auth *usecase.AuthService,
	sessions *usecase.SessionService,
	revocations port.SessionRevocationStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil || claims.SessionID == "" {
			c.Next()
			return
		}

		if revoked, _, _ := revocations.IsSessionRevoked(c.Request.Context(), claims.SessionID); revoked {
			c.Next()
			return
		}

		active, err := sessions.ValidateSession(c.Request.Context(), claims.UserID, claims.SessionID)
		if err != nil || !active {
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(SessionIDKey, claims.SessionID)
		c.Set(ClaimsKey, claims)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RequireRole checks if the authenticated user has any of the specified roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rolesVal, exists := c.Get("roles")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		userRoles, ok := rolesVal.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "invalid roles format"))
			return
		}

		if !hasAnyRole(userRoles, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

func hasAnyRole(userRoles []string, requiredRoles []string) bool {
	roleMap := make(map[string]bool, len(userRoles))
	for _, role := range userRoles {
		roleMap[role] = true
	}

	for _, required := range requiredRoles {
		if roleMap[required] {
			return true
		}
	}
	return false
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
