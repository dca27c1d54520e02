// Package authtest provides a fake OpenID Connect provider for tests.
//
// The provider serves discovery, authorize, token and JWKS endpoints from an
// httptest.Server and signs ID tokens with a throwaway RSA key, so the real
// auth.GoogleProvider can be exercised end to end without network access.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// Default client credentials accepted by the fake provider.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
)

// Identity is the user the provider logs in on the next authorization.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type pendingCode struct {
	nonce     string
	challenge string
	identity  Identity
}

// Provider is a fake OpenID Connect provider.
type Provider struct {
	Server *httptest.Server

	mu       sync.Mutex
	key      *rsa.PrivateKey
	kid      string
	identity Identity
	codes    map[string]pendingCode

	// TamperClaims, when set, may change the ID token claims before signing.
	TamperClaims func(jwt.MapClaims)
	// OmitIDToken makes the token endpoint answer without an id_token.
	OmitIDToken bool
	// FailToken makes the token endpoint reject every exchange.
	FailToken bool
}

// NewProvider starts a fake provider. It is shut down when the test ends.
func NewProvider(t testing.TB) *Provider {
	t.Helper()

	p := &Provider{
		codes:    make(map[string]pendingCode),
		identity: Identity{Subject: "g123", Email: "a@b.com", Name: "A"},
	}
	p.RotateKey(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("GET /authorize", p.handleAuthorize)
	mux.HandleFunc("POST /token", p.handleToken)
	mux.HandleFunc("GET /jwks", p.handleJWKS)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the issuer URL of the provider.
func (p *Provider) URL() string {
	return p.Server.URL
}

// SetIdentity chooses the user logged in by the next authorization.
func (p *Provider) SetIdentity(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = id
}

// RotateKey replaces the signing key and its kid.
func (p *Provider) RotateKey(t testing.TB) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.key = key
	p.kid = xid.New().String()
}

// Sign signs claims with the current key, as the token endpoint would.
func (p *Provider) Sign(claims jwt.MapClaims) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = p.kid
	signed, err := tok.SignedString(p.key)
	if err != nil {
		panic(err)
	}
	return signed
}

// Claims returns a valid claim set for the given identity and nonce.
func (p *Provider) Claims(id Identity, nonce string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   p.URL(),
		"aud":   ClientID,
		"sub":   id.Subject,
		"email": id.Email,
		"name":  id.Name,
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

// Authorize plays the browser and the user: it follows authURL to the
// provider and returns the code and state the provider redirects back with.
func (p *Provider) Authorize(t testing.TB, authURL string) (code, state string) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	if err != nil {
		t.Fatalf("following auth URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize returned status %d, want 302", resp.StatusCode)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	return loc.Query().Get("code"), loc.Query().Get("state")
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.URL(),
		"authorization_endpoint":                p.URL() + "/authorize",
		"token_endpoint":                        p.URL() + "/token",
		"jwks_uri":                              p.URL() + "/jwks",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != ClientID || q.Get("response_type") != "code" {
		http.Error(w, "bad authorization request", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		http.Error(w, "pkce required", http.StatusBadRequest)
		return
	}

	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}

	code := xid.New().String()
	p.mu.Lock()
	p.codes[code] = pendingCode{
		nonce:     q.Get("nonce"),
		challenge: q.Get("code_challenge"),
		identity:  p.identity,
	}
	p.mu.Unlock()

	back := redirect.Query()
	back.Set("code", code)
	back.Set("state", q.Get("state"))
	redirect.RawQuery = back.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if p.FailToken {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if r.PostForm.Get("client_id") != ClientID || r.PostForm.Get("client_secret") != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")
	p.mu.Lock()
	pending, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != pending.challenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	resp := map[string]any{
		"access_token": xid.New().String(),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.OmitIDToken {
		claims := p.Claims(pending.identity, pending.nonce)
		if p.TamperClaims != nil {
			p.TamperClaims(claims)
		}
		resp["id_token"] = p.Sign(claims)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	pub := p.key.PublicKey
	kid := p.kid
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
