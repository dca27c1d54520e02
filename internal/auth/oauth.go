package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/formgate/internal/apperror"
)

// GoogleIssuer is the issuer (and discovery base URL) of Google accounts.
const GoogleIssuer = "https://accounts.google.com"

const defaultOAuthTimeout = 10 * time.Second

// Identity is what we keep from a verified ID token.
type Identity struct {
	Subject string // stable account ID at the provider, used as the user ID
	Email   string
	Name    string
}

// AuthorizationRequest holds the one-time values that bind an authorization
// redirect to its callback. They are stored in the session between the two.
type AuthorizationRequest struct {
	State    string // echoed back by the provider, compared on callback (CSRF)
	Nonce    string // embedded in the ID token, compared on verification (replay)
	Verifier string // PKCE code verifier, sent with the code exchange
}

// NewAuthorizationRequest generates fresh state, nonce and PKCE verifier.
//
// The state is an xid (unique, URL safe). The nonce is 16 random bytes,
// base64url encoded, because it must be unguessable and not merely unique.
func NewAuthorizationRequest() (AuthorizationRequest, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return AuthorizationRequest{}, fmt.Errorf("auth: generating nonce: %w", err)
	}

	return AuthorizationRequest{
		State:    xid.New().String(),
		Nonce:    base64.RawURLEncoding.EncodeToString(nonce),
		Verifier: oauth2.GenerateVerifier(),
	}, nil
}

// ProviderConfig configures a GoogleProvider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // must match the redirect URI registered with Google exactly
	IssuerURL    string // defaults to GoogleIssuer; tests point it at a fake provider
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GoogleProvider implements "Sign in with Google" as an OpenID Connect
// Authorization Code flow with PKCE.
//
// OPENID CONNECT IN ONE PARAGRAPH:
// OAuth 2.0 only hands out access tokens. OpenID Connect adds an ID token to
// the token response: a JWT signed by the provider whose claims say who the
// user is (sub, email, name). We never call a userinfo API. Instead the ID
// token's signature is checked against the provider's published keys (JWKS),
// along with the issuer, our client id as audience and the expiry. The
// nonce ties the token to OUR request.
//
// Endpoints are not hard-coded: go-oidc reads them from the provider's
// discovery document, fetched on first use and cached for the life of the
// process. Its remote key set refetches the JWKS when the provider rotates
// keys.
type GoogleProvider struct {
	cfg    ProviderConfig
	client *http.Client

	mu       sync.Mutex
	provider *oidc.Provider
}

// NewGoogleProvider creates a GoogleProvider. No network call is made until
// the first login.
func NewGoogleProvider(cfg ProviderConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("auth: google client id and secret are required")
	}
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = GoogleIssuer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOAuthTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &GoogleProvider{cfg: cfg, client: client}, nil
}

// AuthURL returns the provider URL to redirect the browser to.
//
// Besides state, the URL carries the nonce and the S256 PKCE challenge
// derived from verifier. Discovery failures surface as ErrOAuthExchange.
func (p *GoogleProvider) AuthURL(ctx context.Context, req AuthorizationRequest) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	conf, err := p.oauthConfig(ctx)
	if err != nil {
		return "", apperror.OAuthExchange(err)
	}

	return conf.AuthCodeURL(req.State,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("nonce", req.Nonce),
		oauth2.S256ChallengeOption(req.Verifier),
	), nil
}

// Exchange trades the authorization code for the raw ID token.
//
// The exchange is a server-to-server POST that includes the client secret
// and the PKCE verifier. A token response without an id_token is treated
// as a failed exchange.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	conf, err := p.oauthConfig(ctx)
	if err != nil {
		return "", apperror.OAuthExchange(err)
	}

	tok, err := conf.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", apperror.OAuthExchange(fmt.Errorf("auth: exchanging code: %w", err))
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return "", apperror.OAuthExchange(errors.New("auth: token response has no id_token"))
	}

	return rawIDToken, nil
}

// profileClaims are the ID token claims beyond the standard ones.
type profileClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// VerifyIDToken checks rawIDToken and returns the identity it asserts.
//
// go-oidc checks the RS256 signature against the provider JWKS, the
// issuer, the audience (our client id) and the expiry. The nonce must match
// the one we sent and the subject must be present. Any failure is
// ErrTokenValidation.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*Identity, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	provider, err := p.discover(ctx)
	if err != nil {
		return nil, apperror.TokenValidation(err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})
	idToken, err := verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, apperror.TokenValidation(fmt.Errorf("auth: verifying id token: %w", err))
	}

	if nonce == "" || idToken.Nonce != nonce {
		return nil, apperror.TokenValidation(errors.New("auth: nonce mismatch"))
	}
	if idToken.Subject == "" {
		return nil, apperror.TokenValidation(errors.New("auth: id token has no subject"))
	}

	var profile profileClaims
	if err := idToken.Claims(&profile); err != nil {
		return nil, apperror.TokenValidation(fmt.Errorf("auth: reading id token claims: %w", err))
	}

	return &Identity{
		Subject: idToken.Subject,
		Email:   profile.Email,
		Name:    profile.Name,
	}, nil
}

// discover returns the cached OIDC provider, running discovery on first
// use. A failed discovery is not cached; the next login tries again.
//
// The lock is not held during the network round trip. Two logins racing on
// a cold cache may both fetch; the first result to land is kept.
func (p *GoogleProvider) discover(ctx context.Context) (*oidc.Provider, error) {
	p.mu.Lock()
	cached := p.provider
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	provider, err := oidc.NewProvider(p.clientContext(ctx), p.cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering provider: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider == nil {
		p.provider = provider
	}
	return p.provider, nil
}

func (p *GoogleProvider) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	provider, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     endpoint,
	}, nil
}

// clientContext makes golang.org/x/oauth2 and go-oidc use our HTTP client.
func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.client)
}

func (p *GoogleProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.Timeout)
}
