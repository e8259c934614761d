package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goSession/identity"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is Google's OpenID Connect issuer.
const GoogleIssuer = "https://accounts.google.com"

var (
	ErrMissingIDToken = errors.New("oauth: token response has no id_token")
	ErrInvalidIDToken = errors.New("oauth: id_token verification failed")
)

// Config configures one OpenID Connect provider.
type Config struct {
	// Name is the provider name used in routes and linked accounts.
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes defaults to openid, email and profile.
	Scopes []string
}

// Provider exchanges authorization codes for verified profiles.
type Provider struct {
	name         string
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// NewOIDC discovers cfg.Issuer and returns a Provider.
func NewOIDC(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newProvider(cfg, provider.Endpoint(), verifier), nil
}

// NewGoogle is NewOIDC for Google. Name defaults to "google".
func NewGoogle(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	cfg.Issuer = GoogleIssuer
	return NewOIDC(ctx, cfg)
}

func newProvider(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return &Provider{
		name: strings.ToLower(cfg.Name),
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier: verifier,
	}
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.New("oauth: provider name required")
	case c.Issuer == "":
		return errors.New("oauth: issuer required")
	case c.ClientID == "":
		return errors.New("oauth: client id required")
	case c.RedirectURL == "":
		return errors.New("oauth: redirect URL required")
	}
	return nil
}

func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL returns the authorization URL for state with a PKCE S256
// challenge derived from codeVerifier.
func (p *Provider) AuthCodeURL(state, codeVerifier string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", CodeChallenge(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// idClaims are the ID token claims mapped onto identity.Profile.
type idClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange redeems code and verifies the returned ID token.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (identity.Profile, error) {
	token, err := p.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("oauth: code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.Profile{}, ErrMissingIDToken
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return identity.Profile{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	return identity.Profile{
		Sub:           claims.Sub,
		Name:          claims.Name,
		Email:         claims.Email,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// CodeChallenge returns the S256 PKCE challenge for verifier.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
