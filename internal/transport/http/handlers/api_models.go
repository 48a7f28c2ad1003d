package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PasswordLoginRequest defines the payload for the first-party login endpoint.
type PasswordLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Scope    string `json:"scope"`
}

// ExternalLoginRequest carries a provider access token for validation.
type ExternalLoginRequest struct {
	Provider string `json:"provider" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Scope    string `json:"scope"`
}

// TokenPairResponse is the JSON shape for first-party token issuance. The
// refresh token itself rides an HttpOnly cookie, never the body.
type TokenPairResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token,omitempty"`
}

// SessionSummary provides a compact view of one login session.
type SessionSummary struct {
	ID              string     `json:"id"`
	DeviceID        string     `json:"device_id"`
	IPAddress       *string    `json:"ip_address,omitempty"`
	UserAgent       *string    `json:"user_agent,omitempty"`
	OperatingSystem *string    `json:"operating_system,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Current         bool       `json:"current"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

func newSessionSummary(session domain.Session, currentID string) SessionSummary {
	return SessionSummary{
		ID:              session.ID,
		DeviceID:        session.DeviceID,
		IPAddress:       session.IPAddress,
		UserAgent:       session.UserAgent,
		OperatingSystem: session.OperatingSystem,
		CreatedAt:       session.CreatedAt,
		LastActivityAt:  session.LastActivityAt,
		ExpiresAt:       session.ExpiresAt,
		Current:         session.ID == currentID,
		RevokedAt:       session.RevokedAt,
	}
}

// SessionListResponse wraps the user's sessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// BatchRevokeRequest names the sessions to terminate in one call.
type BatchRevokeRequest struct {
	SessionIDs []string `json:"session_ids" binding:"required"`
}

// BatchRevokeResponse reports how many sessions were actually revoked.
type BatchRevokeResponse struct {
	Revoked int `json:"revoked"`
}
