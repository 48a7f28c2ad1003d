package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

const googleValidateTimeout = 10 * time.Second

// GoogleValidator checks a Google identity token via the tokeninfo endpoint
// and enforces that the token was minted for our client id.
type GoogleValidator struct {
	clientID string
	opts     []option.ClientOption
}

// NewGoogleValidator constructs a validator for the configured client id.
// Extra client options are accepted so tests can point the service at a fake
// endpoint.
func NewGoogleValidator(clientID string, opts ...option.ClientOption) *GoogleValidator {
	base := []option.ClientOption{option.WithHTTPClient(&http.Client{Timeout: googleValidateTimeout})}
	return &GoogleValidator{
		clientID: clientID,
		opts:     append(base, opts...),
	}
}

// Name returns the provider key.
func (v *GoogleValidator) Name() string {
	return "google"
}

// Validate verifies the identity token and returns the normalized identity.
func (v *GoogleValidator) Validate(ctx context.Context, rawToken string) (*domain.ExternalLoginInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, googleValidateTimeout)
	defer cancel()

	service, err := oauth2.NewService(ctx, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tokenInfo, err := service.Tokeninfo().IdToken(rawToken).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if tokenInfo.Audience != v.clientID {
		return nil, ErrInvalidAudience
	}
	if tokenInfo.ExpiresIn <= 0 {
		return nil, ErrTokenExpired
	}

	return &domain.ExternalLoginInfo{
		Provider:  v.Name(),
		SubjectID: tokenInfo.UserId,
		Email:     tokenInfo.Email,
	}, nil
}

var _ Validator = (*GoogleValidator)(nil)
