package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusLocked   UserStatus = "locked"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	Phone         *string
	PasswordHash  string
	Status        UserStatus
	EmailVerified bool
	PhoneVerified bool
	RegisteredAt  time.Time
	LastLogin     *time.Time
}

// CanSignIn reports whether the account is currently eligible for credential issuance.
func (u User) CanSignIn() bool {
	return u.Status == UserStatusActive
}

// ExternalLogin links a third-party provider identity to a local account.
type ExternalLogin struct {
	Provider  string
	SubjectID string
	UserID    string
	Email     string
	CreatedAt time.Time
}

// ExternalLoginInfo is the normalized identity tuple produced by a provider
// validator, independent of provider-specific claim shapes.
type ExternalLoginInfo struct {
	Provider    string
	SubjectID   string
	Email       string
	DisplayName string
}
