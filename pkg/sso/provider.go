package sso

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/campusgate/campusgate/pkg/auth"
)

// GoogleProvider implements the browser login flow against Google:
// redirect to the authorization endpoint, then exchange the callback
// code for an ID token verified the same way as a directly submitted one.
type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *GoogleVerifier
}

// ProviderConfig configures the browser flow
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGoogleProvider builds the browser-flow provider sharing the given
// verifier for ID-token validation.
func NewGoogleProvider(ctx context.Context, cfg ProviderConfig, verifier *GoogleVerifier) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("sso: client ID, client secret, and redirect URL are required")
	}

	provider, err := oidc.NewProvider(ctx, GoogleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("sso: failed to discover OIDC provider: %w", err)
	}

	return &GoogleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: verifier,
	}, nil
}

// InitiateLogin redirects the browser to Google's authorization endpoint
func (p *GoogleProvider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	authURL := p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback exchanges the authorization code for tokens and verifies
// the embedded ID token.
func (p *GoogleProvider) HandleCallback(ctx context.Context, code string) (*auth.ExternalIdentity, error) {
	if code == "" {
		return nil, fmt.Errorf("sso: missing authorization code")
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("sso: failed to exchange code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("sso: missing id_token in token response")
	}

	return p.verifier.Verify(ctx, rawIDToken)
}
