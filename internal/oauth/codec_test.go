package oauth

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseTokenRequestAuthorizationCode(t *testing.T) {
	form := url.Values{}
	form.Set("grant_type", GrantAuthorizationCode)
	form.Set("code", "abc")
	form.Set("redirect_uri", "https://app.example.com/callback")
	form.Set("client_id", "spa")
	form.Set("scope", "openid profile")

	req, err := ParseTokenRequest(form)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Code != "abc" || req.ClientID != "spa" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %v", req.Scopes)
	}
}

func TestParseTokenRequestMissingGrantType(t *testing.T) {
	_, err := ParseTokenRequest(url.Values{})
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}

func TestParseTokenRequestUnsupportedGrant(t *testing.T) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	_, err := ParseTokenRequest(form)
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != CodeUnsupportedGrantType {
		t.Fatalf("expected unsupported_grant_type, got %v", err)
	}
}

func TestParseTokenRequestRefreshWithoutToken(t *testing.T) {
	form := url.Values{}
	form.Set("grant_type", GrantRefreshToken)

	_, err := ParseTokenRequest(form)
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}

func TestParseTokenResponse(t *testing.T) {
	body := []byte(`{"access_token":"at","token_type":"Bearer","expires_in":900,"refresh_token":"rt"}`)

	resp, err := ParseTokenResponse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.AccessToken != "at" || resp.RefreshToken != "rt" || resp.ExpiresIn != 900 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestParseTokenResponseMissingAccessToken(t *testing.T) {
	_, err := ParseTokenResponse([]byte(`{"token_type":"Bearer"}`))
	if !errors.Is(err, ErrMalformedTokenResponse) {
		t.Fatalf("expected ErrMalformedTokenResponse, got %v", err)
	}
}

func TestParseTokenResponseGarbage(t *testing.T) {
	_, err := ParseTokenResponse([]byte(`{not json`))
	if !errors.Is(err, ErrMalformedTokenResponse) {
		t.Fatalf("expected ErrMalformedTokenResponse, got %v", err)
	}
}

func TestInvalidGrantIsGeneric(t *testing.T) {
	a := InvalidGrant()
	b := InvalidGrant()
	if a.Code != CodeInvalidGrant || a.Description != b.Description {
		t.Fatal("invalid_grant must be indistinguishable across causes")
	}
}
