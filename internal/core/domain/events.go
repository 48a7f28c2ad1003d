package domain

import "time"

// SessionRevokedEvent is published when a session is terminated for any reason.
type SessionRevokedEvent struct {
	EventID   string         `json:"event_id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	DeviceID  string         `json:"device_id,omitempty"`
	RevokedAt time.Time      `json:"revoked_at"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TokenReuseDetectedEvent is published when an already-rotated refresh token
// is presented again, a signal of token theft.
type TokenReuseDetectedEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	TokenID    string    `json:"token_id"`
	DetectedAt time.Time `json:"detected_at"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// ExternalLoginLinkedEvent is published when a provider identity is attached
// to a local account, including first-login account creation.
type ExternalLoginLinkedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Provider    string    `json:"provider"`
	SubjectID   string    `json:"subject_id"`
	LinkedAt    time.Time `json:"linked_at"`
	UserCreated bool      `json:"user_created"`
}
