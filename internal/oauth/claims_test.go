package oauth

import (
	"errors"
	"reflect"
	"testing"
)

func TestDestinationsOpenIDOnly(t *testing.T) {
	policy := DefaultDestinationPolicy()
	scopes := []string{ScopeOpenID}

	if got := policy.Destinations(ClaimEmail, scopes); !reflect.DeepEqual(got, []Destination{DestinationAccessToken}) {
		t.Fatalf("email with openid only should stay in the access token, got %v", got)
	}
	if policy.Includes(ClaimRole, scopes, DestinationIDToken) {
		t.Fatal("roles must never reach the id token")
	}
	if !policy.Includes(ClaimSubject, scopes, DestinationIDToken) {
		t.Fatal("subject should reach the id token once openid is granted")
	}
}

func TestDestinationsEmailScopeAddsEmailClaims(t *testing.T) {
	policy := DefaultDestinationPolicy()

	without := policy.Destinations(ClaimEmailVerified, []string{ScopeOpenID})
	with := policy.Destinations(ClaimEmailVerified, []string{ScopeOpenID, ScopeEmail})

	if policy.Includes(ClaimEmailVerified, []string{ScopeOpenID}, DestinationUserInfo) {
		t.Fatalf("email_verified must not surface in userinfo without the email scope, got %v", without)
	}
	if !policy.Includes(ClaimEmailVerified, []string{ScopeOpenID, ScopeEmail}, DestinationUserInfo) {
		t.Fatalf("email scope should unlock email_verified in userinfo, got %v", with)
	}
}

func TestDestinationsUnknownClaimGoesNowhere(t *testing.T) {
	policy := DefaultDestinationPolicy()
	if got := policy.Destinations("shoe_size", []string{ScopeOpenID, ScopeProfile, ScopeEmail}); got != nil {
		t.Fatalf("unknown claim should have no destinations, got %v", got)
	}
}

func TestDestinationsPhoneIsUserInfoOnly(t *testing.T) {
	policy := DefaultDestinationPolicy()

	if got := policy.Destinations(ClaimPhone, []string{ScopeOpenID}); got != nil {
		t.Fatalf("phone without phone scope should go nowhere, got %v", got)
	}
	got := policy.Destinations(ClaimPhone, []string{ScopePhone})
	if !reflect.DeepEqual(got, []Destination{DestinationUserInfo}) {
		t.Fatalf("phone should be userinfo only, got %v", got)
	}
}

func TestParseScopes(t *testing.T) {
	got := ParseScopes("  openid profile openid email ")
	want := []string{"openid", "profile", "email"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := ParseScopes(""); got != nil {
		t.Fatalf("empty scope string should yield nil, got %v", got)
	}
}

func TestValidateScopes(t *testing.T) {
	allowed := []string{"openid", "profile", "email"}

	if err := ValidateScopes([]string{"openid", "email"}, allowed); err != nil {
		t.Fatalf("allowed scopes rejected: %v", err)
	}

	err := ValidateScopes([]string{"openid", "admin"}, allowed)
	if err == nil {
		t.Fatal("expected invalid_scope error")
	}
	var oauthErr *Error
	if !errors.As(err, &oauthErr) || oauthErr.Code != CodeInvalidScope {
		t.Fatalf("expected invalid_scope, got %v", err)
	}
}
