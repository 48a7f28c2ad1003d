package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
)

const facebookValidateTimeout = 10 * time.Second

// FacebookValidator introspects an access token via the Graph API debug_token
// endpoint and, on success, fetches the basic profile.
type FacebookValidator struct {
	appID     string
	appSecret string
	baseURL   string
	client    *http.Client
}

// NewFacebookValidator constructs a validator for the configured app
// credentials. The base URL is overridable for tests.
func NewFacebookValidator(appID, appSecret string) *FacebookValidator {
	return &FacebookValidator{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   "https://graph.facebook.com",
		client:    &http.Client{Timeout: facebookValidateTimeout},
	}
}

// WithBaseURL points the validator at an alternative Graph API host.
func (v *FacebookValidator) WithBaseURL(baseURL string) *FacebookValidator {
	v.baseURL = baseURL
	return v
}

// Name returns the provider key.
func (v *FacebookValidator) Name() string {
	return "facebook"
}

type facebookDebugResponse struct {
	Data struct {
		AppID   string `json:"app_id"`
		IsValid bool   `json:"is_valid"`
		UserID  string `json:"user_id"`
	} `json:"data"`
}

type facebookProfileResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate introspects the token and fetches the profile of its owner.
func (v *FacebookValidator) Validate(ctx context.Context, rawToken string) (*domain.ExternalLoginInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, facebookValidateTimeout)
	defer cancel()

	var debug facebookDebugResponse
	debugURL := fmt.Sprintf("%s/debug_token?input_token=%s&access_token=%s",
		v.baseURL,
		url.QueryEscape(rawToken),
		url.QueryEscape(v.appID+"|"+v.appSecret),
	)
	if err := v.getJSON(ctx, debugURL, &debug); err != nil {
		return nil, err
	}

	if !debug.Data.IsValid {
		return nil, ErrInvalidToken
	}
	if debug.Data.AppID != v.appID {
		return nil, ErrInvalidAudience
	}

	var profile facebookProfileResponse
	profileURL := fmt.Sprintf("%s/me?fields=id,name,email&access_token=%s",
		v.baseURL,
		url.QueryEscape(rawToken),
	)
	if err := v.getJSON(ctx, profileURL, &profile); err != nil {
		return nil, err
	}

	return &domain.ExternalLoginInfo{
		Provider:    v.Name(),
		SubjectID:   profile.ID,
		Email:       profile.Email,
		DisplayName: profile.Name,
	}, nil
}

func (v *FacebookValidator) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return nil
}

var _ Validator = (*FacebookValidator)(nil)
