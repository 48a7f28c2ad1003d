package oauth

import "fmt"

// Standard OAuth 2.0 error codes returned on the token and authorize
// endpoints (RFC 6749 section 5.2).
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeInvalidScope         = "invalid_scope"
	CodeAccessDenied         = "access_denied"
	CodeServerError          = "server_error"
)

// Error is a typed OAuth protocol error. The description is safe to return to
// clients; anything sensitive stays in logs.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError constructs a typed OAuth error.
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// InvalidRequest returns an invalid_request error.
func InvalidRequest(description string) *Error {
	return NewError(CodeInvalidRequest, description)
}

// InvalidGrant returns the deliberately generic invalid_grant error. Reuse
// detection, expiry, and revocation all collapse into this one code so a
// caller cannot probe which condition tripped.
func InvalidGrant() *Error {
	return NewError(CodeInvalidGrant, "invalid or expired grant")
}

// InvalidScope returns an invalid_scope error naming the offending scope.
func InvalidScope(scope string) *Error {
	return NewError(CodeInvalidScope, fmt.Sprintf("scope %q is not allowed", scope))
}

// UnsupportedGrantType returns an unsupported_grant_type error.
func UnsupportedGrantType(grantType string) *Error {
	return NewError(CodeUnsupportedGrantType, fmt.Sprintf("grant type %q is not supported", grantType))
}

// ServerError returns a generic server_error without internal detail.
func ServerError() *Error {
	return NewError(CodeServerError, "internal error")
}
