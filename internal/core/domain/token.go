package domain

import "time"

// RefreshToken represents a persisted refresh token. Only the salted HMAC of
// the raw secret is stored; rotation links each token to its successor so a
// presented predecessor can be recognized as reuse.
type RefreshToken struct {
	ID           string
	SessionID    string
	UserID       string
	TokenHash    string
	Salt         string
	Scopes       []string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *string
}

// WasRotated reports whether the token was retired by a successful rotation.
// A rotated token that is presented again is evidence of reuse; a token
// revoked any other way is just dead.
func (t RefreshToken) WasRotated() bool {
	return t.ReplacedByID != nil
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive returns true when the token can still be presented for rotation.
func (t RefreshToken) IsActive(at time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(at)
}

// Revoke marks the token as revoked.
// Returns true if the token transitioned to the revoked state.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	timeCopy := at
	t.RevokedAt = &timeCopy
	return true
}

// TokenPair is the result of a successful grant: a signed access token plus
// the raw refresh token handed to the client exactly once. Scopes carries the
// effective scope set the access token was signed with.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	IDToken          string
	AccessExpiresIn  int
	RefreshExpiresAt time.Time
	Scopes           []string
}

// AuthorizationGrant is the one-time payload bound to an authorization code
// between the authorize and token endpoints.
type AuthorizationGrant struct {
	UserID      string
	ClientID    string
	RedirectURI string
	Scopes      []string
	IssuedAt    time.Time
}
