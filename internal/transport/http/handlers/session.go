package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/repository"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// SessionHandler exposes endpoints for session management.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds REST session management routes to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.DELETE("/:session_id", h.RevokeSession)
	r.POST("/batch", h.RevokeSessions)
	r.POST("/batch-revoke", h.RevokeSessions)
}

// ListSessions returns every session for the authenticated user, the current
// one flagged so the client can render it apart.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	currentID, _ := middleware.GetSessionID(c)

	response := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, newSessionSummary(session, currentID))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: response})
}

// RevokeSession revokes one session owned by the authenticated user.
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	if err := h.sessions.RevokeSession(c.Request.Context(), userID, sessionID, "user_revoked"); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}

// RevokeSessions batch-revokes the named sessions. Ownership is enforced per
// row, so ids belonging to other users simply do not count.
func (h *SessionHandler) RevokeSessions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req BatchRevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.SessionIDs) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_ids is required"))
		return
	}

	count, err := h.sessions.RevokeSessions(c.Request.Context(), userID, req.SessionIDs, "user_revoked")
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, BatchRevokeResponse{Revoked: count})
}
