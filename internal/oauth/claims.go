package oauth

import (
	"sort"
	"strings"
)

// Destination names a token surface a claim can be embedded in.
type Destination string

const (
	DestinationAccessToken Destination = "access_token"
	DestinationIDToken     Destination = "id_token"
	DestinationUserInfo    Destination = "userinfo"
)

// Well-known claim types handled by the destination policy.
const (
	ClaimSubject       = "sub"
	ClaimName          = "name"
	ClaimEmail         = "email"
	ClaimEmailVerified = "email_verified"
	ClaimRole          = "role"
	ClaimPhone         = "phone"
)

// Scopes recognized by the server. The allowed set for a deployment is
// injected through configuration; these constants only name the semantics.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeRoles         = "roles"
	ScopePhone         = "phone"
	ScopeOfflineAccess = "offline_access"
)

// DestinationRule describes where a claim type lands and which scope gates
// the optional surfaces.
type DestinationRule struct {
	// Always lists destinations the claim reaches unconditionally.
	Always []Destination
	// ScopeGated maps a scope to the destinations unlocked by granting it.
	ScopeGated map[string][]Destination
}

// DestinationPolicy maps claim types to their placement rules. Claim types
// without a rule go nowhere.
type DestinationPolicy map[string]DestinationRule

// DefaultDestinationPolicy returns the stock placement rules: subject, name
// and email always ride in the access token and additionally surface in the
// ID token and userinfo response only when the matching scope was granted.
// Roles never leave the access token except through the roles scope on
// userinfo.
func DefaultDestinationPolicy() DestinationPolicy {
	return DestinationPolicy{
		ClaimSubject: {
			Always: []Destination{DestinationAccessToken},
			ScopeGated: map[string][]Destination{
				ScopeOpenID: {DestinationIDToken, DestinationUserInfo},
			},
		},
		ClaimName: {
			Always: []Destination{DestinationAccessToken},
			ScopeGated: map[string][]Destination{
				ScopeProfile: {DestinationIDToken, DestinationUserInfo},
			},
		},
		ClaimEmail: {
			Always: []Destination{DestinationAccessToken},
			ScopeGated: map[string][]Destination{
				ScopeEmail: {DestinationIDToken, DestinationUserInfo},
			},
		},
		ClaimEmailVerified: {
			Always: []Destination{DestinationAccessToken},
			ScopeGated: map[string][]Destination{
				ScopeEmail: {DestinationIDToken, DestinationUserInfo},
			},
		},
		ClaimRole: {
			Always: []Destination{DestinationAccessToken},
			ScopeGated: map[string][]Destination{
				ScopeRoles: {DestinationUserInfo},
			},
		},
		ClaimPhone: {
			ScopeGated: map[string][]Destination{
				ScopePhone: {DestinationUserInfo},
			},
		},
	}
}

// Destinations resolves where a claim of the given type belongs for the
// granted scopes. The result is deterministic and sorted.
func (p DestinationPolicy) Destinations(claimType string, grantedScopes []string) []Destination {
	rule, ok := p[claimType]
	if !ok {
		return nil
	}

	set := make(map[Destination]struct{}, 3)
	for _, d := range rule.Always {
		set[d] = struct{}{}
	}
	for _, scope := range grantedScopes {
		for _, d := range rule.ScopeGated[scope] {
			set[d] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil
	}

	out := make([]Destination, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Includes reports whether the claim reaches the destination under the
// granted scopes.
func (p DestinationPolicy) Includes(claimType string, grantedScopes []string, dest Destination) bool {
	for _, d := range p.Destinations(claimType, grantedScopes) {
		if d == dest {
			return true
		}
	}
	return false
}

// ParseScopes splits a space-delimited scope string into its members,
// dropping empties and duplicates while preserving order.
func ParseScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, s := range fields {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidateScopes checks every requested scope against the allowed set and
// returns a typed invalid_scope error for the first stranger.
func ValidateScopes(requested, allowed []string) error {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}

	for _, s := range requested {
		if _, ok := allowedSet[s]; !ok {
			return InvalidScope(s)
		}
	}
	return nil
}

// NarrowScopes bounds a refresh request by the originally granted scope set.
// An empty request means "same as granted"; scopes the original grant never
// carried are dropped rather than honored.
func NarrowScopes(requested, granted []string) []string {
	if len(requested) == 0 {
		return granted
	}

	grantedSet := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		grantedSet[s] = struct{}{}
	}

	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := grantedSet[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// HasScope reports whether the scope list contains the given scope.
func HasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
