package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"
	// SessionIDKey is the context key for the validated session ID
	SessionIDKey = "session_id"
	// ClaimsKey is the context key for parsed access token claims
	ClaimsKey = "claims"
	// ClientInfoKey is the context key for resolved client metadata
	ClientInfoKey = "client_info"
)

// EnrichContext adds trace ID to each request and echoes it in the response.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	if id, ok := userID.(string); ok {
		return id, true
	}
	return "", false
}

// GetSessionID retrieves the validated session ID from context.
func GetSessionID(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get(SessionIDKey)
	if !exists {
		return "", false
	}
	if id, ok := sessionID.(string); ok {
		return id, true
	}
	return "", false
}

// GetClaims retrieves the parsed access token claims from context.
func GetClaims(c *gin.Context) (*security.AccessTokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.AccessTokenClaims)
	return claims, ok
}

// GetClientInfo retrieves the resolved client metadata from context. Handlers
// behind ResolveClientInfo always find it; the zero value covers the rest.
func GetClientInfo(c *gin.Context) domain.ClientInfo {
	if value, exists := c.Get(ClientInfoKey); exists {
		if info, ok := value.(domain.ClientInfo); ok {
			return info
		}
	}
	return domain.ClientInfo{}
}
