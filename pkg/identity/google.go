package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/meridianhq/meridian/pkg/apierror"
)

// GoogleConfig configures the Google OIDC integration
type GoogleConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GoogleProvider performs the OIDC code exchange against Google and turns
// a verified ID token into an Assertion for the reconciler.
type GoogleProvider struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewGoogleProvider discovers the issuer and builds the verifier and
// OAuth2 client config.
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("google oidc: client id and secret are required")
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("google oidc: discover provider: %w", err)
	}

	return &GoogleProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
		},
	}, nil
}

// AuthURL returns the authorization redirect URL for the given state
func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified Assertion
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Assertion, error) {
	if code == "" {
		return Assertion{}, apierror.BadRequest("missing authorization code")
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return Assertion{}, apierror.Wrap(apierror.KindUnauthorized, "code exchange failed", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Assertion{}, apierror.Unauthorized("missing id_token in provider response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Assertion{}, apierror.Wrap(apierror.KindUnauthorized, "id token verification failed", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Assertion{}, apierror.Wrap(apierror.KindUnauthorized, "could not parse id token claims", err)
	}

	return AssertionFromClaims(claims.Subject, claims.Email, claims.Name)
}

// AssertionFromClaims normalizes raw token claims into an Assertion. A
// missing display name falls back to the email local part.
func AssertionFromClaims(subject, email, name string) (Assertion, error) {
	if email == "" {
		return Assertion{}, apierror.BadRequest("email not provided by identity provider")
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return Assertion{
		Email:      email,
		ProviderID: subject,
		Name:       name,
	}, nil
}
