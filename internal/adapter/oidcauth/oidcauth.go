// Package oidcauth signs the device in with an OpenID Connect provider and
// yields the owner id that scopes synchronized records.
package oidcauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrNoIDToken   = errors.New("no id_token in token response")
	ErrNotSignedIn = errors.New("not signed in")
)

// Config names the provider and this client's registration.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Session is the result of a completed sign-in.
type Session struct {
	Owner string
	Email string
	Token *oauth2.Token
}

// Provider verifies ID tokens and runs the authorization code flow.
type Provider struct {
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

// NewProvider discovers the issuer's endpoints and keys.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess, "profile", "email"},
	}
	return New(p.Verifier(&oidc.Config{ClientID: cfg.ClientID}), oc), nil
}

// New builds a provider from an existing verifier and client config.
func New(v *oidc.IDTokenVerifier, oc *oauth2.Config) *Provider {
	return &Provider{verifier: v, oauth: oc}
}

// AuthCodeURL returns the provider's sign-in URL for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a verified session.
func (p *Provider) Exchange(ctx context.Context, code string) (*Session, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, ErrNoIDToken
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims struct {
		Email string `json:"email"`
	}
	_ = idToken.Claims(&claims)
	return &Session{Owner: idToken.Subject, Email: claims.Email, Token: tok}, nil
}

// Owner verifies a raw ID token and returns its subject.
func (p *Provider) Owner(ctx context.Context, rawIDToken string) (string, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", err
	}
	return idToken.Subject, nil
}

// TokenSource returns a source of bearer tokens carrying the current ID
// token, refreshed through the provider as needed.
func (p *Provider) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return idTokenSource{src: p.oauth.TokenSource(ctx, tok)}
}

type idTokenSource struct {
	src oauth2.TokenSource
}

func (s idTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, ErrNoIDToken
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer", Expiry: tok.Expiry}, nil
}

// Holder is a TokenSource whose underlying source is swapped on sign-in and
// sign-out.
type Holder struct {
	mu  sync.RWMutex
	src oauth2.TokenSource
}

// Set replaces the current source. A nil source signs out.
func (h *Holder) Set(src oauth2.TokenSource) {
	h.mu.Lock()
	h.src = src
	h.mu.Unlock()
}

// Token returns a token from the current source.
func (h *Holder) Token() (*oauth2.Token, error) {
	h.mu.RLock()
	src := h.src
	h.mu.RUnlock()
	if src == nil {
		return nil, ErrNotSignedIn
	}
	return src.Token()
}
