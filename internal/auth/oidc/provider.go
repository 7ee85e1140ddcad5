// Package oidc implements Google sign-in over OpenID Connect: discovery,
// the authorization-code exchange, ID token verification, and the
// short-lived state values that protect the redirect round trip.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
)

// GoogleIssuer is used when no issuer URL is configured.
const GoogleIssuer = "https://accounts.google.com"

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// Identity is what a verified ID token says about the signed-in person.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider wraps an OIDC provider and its OAuth2 client configuration.
type Provider struct {
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
}

// NewProvider runs OIDC discovery against the configured issuer.
func NewProvider(ctx context.Context, cfg config.OIDCConfig) (*Provider, error) {
	if !cfg.Enabled {
		return nil, errors.New("google sign-in is not enabled")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("OIDC client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("OIDC client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("OIDC redirect URL is required")
	}
	issuer := cfg.IssuerURL
	if issuer == "" {
		issuer = GoogleIssuer
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Provider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// AuthURL returns the consent page URL carrying state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Authenticate exchanges an authorization code and verifies the ID token
// that comes back with it.
func (p *Provider) Authenticate(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, errors.New("token response has no id_token")
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	return claims.identity()
}

type idClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (c idClaims) identity() (*Identity, error) {
	if c.Sub == "" {
		return nil, errors.New("ID token missing 'sub' claim")
	}
	if c.Email == "" {
		return nil, errors.New("ID token missing 'email' claim")
	}
	name := c.Name
	if name == "" {
		name, _, _ = strings.Cut(c.Email, "@")
	}
	return &Identity{
		Subject:       c.Sub,
		Email:         strings.ToLower(c.Email),
		EmailVerified: c.EmailVerified,
		Name:          name,
	}, nil
}
