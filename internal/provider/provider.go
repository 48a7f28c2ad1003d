package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

// Validation failure modes shared by all providers.
var (
	ErrInvalidToken    = errors.New("provider: invalid token")
	ErrInvalidAudience = errors.New("provider: invalid audience")
	ErrTokenExpired    = errors.New("provider: token expired")
	ErrUnavailable     = errors.New("provider: upstream unavailable")
)

// Validator authenticates a third-party credential and produces a normalized
// identity tuple. Implementations must bound their upstream calls with their
// own timeout so a slow provider fails the login, not the server.
type Validator interface {
	Name() string
	Validate(ctx context.Context, rawToken string) (*domain.ExternalLoginInfo, error)
}

// Registry holds the configured validators. Which providers exist is purely
// configuration data; an unconfigured provider is simply absent.
type Registry struct {
	validators map[string]Validator
}

// NewRegistry constructs a registry over the supplied validators.
func NewRegistry(validators ...Validator) *Registry {
	reg := &Registry{validators: make(map[string]Validator, len(validators))}
	for _, v := range validators {
		if v == nil {
			continue
		}
		reg.validators[strings.ToLower(v.Name())] = v
	}
	return reg
}

// Lookup returns the validator for a provider name, case-insensitively.
func (r *Registry) Lookup(name string) (Validator, error) {
	v, ok := r.validators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidToken, name)
	}
	return v, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
