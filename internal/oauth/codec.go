package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Grant types accepted on the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
)

// ErrMalformedTokenResponse indicates an upstream token response that could
// not be decoded or was missing required fields.
var ErrMalformedTokenResponse = errors.New("oauth: malformed token response")

// TokenRequest is the parsed form of a token endpoint call.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	ClientID     string
	Scopes       []string
}

// ParseTokenRequest decodes form parameters into a TokenRequest, enforcing
// the presence of the parameters the declared grant type requires.
func ParseTokenRequest(form url.Values) (*TokenRequest, error) {
	grantType := strings.TrimSpace(form.Get("grant_type"))
	if grantType == "" {
		return nil, InvalidRequest("grant_type is required")
	}

	req := &TokenRequest{
		GrantType:    grantType,
		Code:         strings.TrimSpace(form.Get("code")),
		RedirectURI:  strings.TrimSpace(form.Get("redirect_uri")),
		RefreshToken: strings.TrimSpace(form.Get("refresh_token")),
		Username:     strings.TrimSpace(form.Get("username")),
		Password:     form.Get("password"),
		ClientID:     strings.TrimSpace(form.Get("client_id")),
		Scopes:       ParseScopes(form.Get("scope")),
	}

	switch grantType {
	case GrantAuthorizationCode:
		if req.Code == "" {
			return nil, InvalidRequest("code is required")
		}
	case GrantRefreshToken:
		if req.RefreshToken == "" {
			return nil, InvalidRequest("refresh_token is required")
		}
	case GrantPassword:
		if req.Username == "" || req.Password == "" {
			return nil, InvalidRequest("username and password are required")
		}
	default:
		return nil, UnsupportedGrantType(grantType)
	}

	return req, nil
}

// TokenResponse is the JSON body returned from the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// NewTokenResponse shapes a bearer token response.
func NewTokenResponse(accessToken, refreshToken, idToken string, expiresIn int, scopes []string) TokenResponse {
	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		Scope:        strings.Join(scopes, " "),
	}
}

// ParseTokenResponse decodes a token endpoint body, mapping structural
// problems to ErrMalformedTokenResponse so callers can distinguish transport
// failures from protocol errors.
func ParseTokenResponse(body []byte) (*TokenResponse, error) {
	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrMalformedTokenResponse)
	}
	if resp.TokenType != "" && !strings.EqualFold(resp.TokenType, "bearer") {
		return nil, fmt.Errorf("%w: unexpected token_type %q", ErrMalformedTokenResponse, resp.TokenType)
	}

	return &resp, nil
}
