package domain

import "time"

// Session represents a persisted login session bound to a user and device.
// At most one active session exists per (user, device) pair; a fresh login
// from the same device supersedes the previous session in place.
type Session struct {
	ID              string
	UserID          string
	DeviceID        string
	IPAddress       *string
	UserAgent       *string
	OperatingSystem *string
	CreatedAt       time.Time
	LastActivityAt  time.Time
	LastRefreshAt   time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	RevokeReason    *string
}

// IsActive reports whether the session is still valid (not revoked and not expired at the supplied moment).
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// Touch updates the last-activity stamp when the session is used.
func (s *Session) Touch(at time.Time) {
	s.LastActivityAt = at
}

// MarkRefreshed records a successful refresh-token rotation against the session.
func (s *Session) MarkRefreshed(at time.Time) {
	s.LastActivityAt = at
	s.LastRefreshAt = at
}

// Revoke marks the session as revoked. Returns true when the session changed state.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}

// ClientInfo captures per-request client metadata. It is resolved once per
// request and passed by value into the session and token services.
type ClientInfo struct {
	DeviceID        string
	IPAddress       string
	UserAgent       string
	OperatingSystem string
}

// Session event kinds retained in the audit trail.
const (
	SessionEventCreated       = "created"
	SessionEventRotated       = "rotated"
	SessionEventRevoked       = "revoked"
	SessionEventReuseDetected = "reuse_detected"
)

// SessionEvent captures lifecycle changes for sessions, retained for audit.
type SessionEvent struct {
	ID        string
	SessionID string
	Kind      string
	At        time.Time
	IP        *string
	UserAgent *string
	Details   map[string]any
}
