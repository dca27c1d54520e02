package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/auth/authtest"
)

// =========================================================================
// HELPERS
// =========================================================================

func newTestGoogleProvider(t *testing.T, fake *authtest.Provider) *GoogleProvider {
	t.Helper()

	p, err := NewGoogleProvider(ProviderConfig{
		ClientID:     authtest.ClientID,
		ClientSecret: authtest.ClientSecret,
		RedirectURL:  "http://localhost:8080/login/google/authorized",
		IssuerURL:    fake.URL(),
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return p
}

// startLogin runs the first half of the flow and returns the raw ID token.
func startLogin(t *testing.T, p *GoogleProvider, fake *authtest.Provider) (AuthorizationRequest, string) {
	t.Helper()
	ctx := context.Background()

	req, err := NewAuthorizationRequest()
	require.NoError(t, err)

	authURL, err := p.AuthURL(ctx, req)
	require.NoError(t, err)

	code, state := fake.Authorize(t, authURL)
	require.Equal(t, req.State, state)

	raw, err := p.Exchange(ctx, code, req.Verifier)
	require.NoError(t, err)
	return req, raw
}

// =========================================================================
// AUTHORIZATION REQUEST
// =========================================================================

func TestNewAuthorizationRequest(t *testing.T) {
	a, err := NewAuthorizationRequest()
	require.NoError(t, err)
	b, err := NewAuthorizationRequest()
	require.NoError(t, err)

	assert.NotEqual(t, a.State, b.State)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Verifier, b.Verifier)

	raw, err := base64.RawURLEncoding.DecodeString(a.Nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestNewGoogleProvider_RequiresCredentials(t *testing.T) {
	_, err := NewGoogleProvider(ProviderConfig{ClientID: "id"})
	assert.Error(t, err)

	_, err = NewGoogleProvider(ProviderConfig{ClientSecret: "secret"})
	assert.Error(t, err)
}

// =========================================================================
// FLOW
// =========================================================================

func TestGoogleProvider_AuthURL(t *testing.T) {
	fake := authtest.NewProvider(t)
	p := newTestGoogleProvider(t, fake)

	req, err := NewAuthorizationRequest()
	require.NoError(t, err)

	authURL, err := p.AuthURL(context.Background(), req)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, fake.URL()+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, req.State, q.Get("state"))
	assert.Equal(t, req.Nonce, q.Get("nonce"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEqual(t, req.Verifier, q.Get("code_challenge"), "verifier must never leave the server")
}

func TestGoogleProvider_FullFlow(t *testing.T) {
	fake := authtest.NewProvider(t)
	fake.SetIdentity(authtest.Identity{Subject: "g123", Email: "a@b.com", Name: "A"})
	p := newTestGoogleProvider(t, fake)

	req, raw := startLogin(t, p, fake)

	id, err := p.VerifyIDToken(context.Background(), raw, req.Nonce)
	require.NoError(t, err)
	assert.Equal(t, &Identity{Subject: "g123", Email: "a@b.com", Name: "A"}, id)
}

func TestGoogleProvider_DiscoveryFailure(t *testing.T) {
	fake := authtest.NewProvider(t)
	p := newTestGoogleProvider(t, fake)
	fake.Server.Close()

	req, err := NewAuthorizationRequest()
	require.NoError(t, err)

	_, err = p.AuthURL(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrOAuthExchange)
}

// =========================================================================
// EXCHANGE FAILURES
// =========================================================================

func TestExchange_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*authtest.Provider)
		verifier func(AuthorizationRequest) string
	}{
		{
			name:     "provider rejects code",
			setup:    func(f *authtest.Provider) { f.FailToken = true },
			verifier: func(r AuthorizationRequest) string { return r.Verifier },
		},
		{
			name:     "no id_token in response",
			setup:    func(f *authtest.Provider) { f.OmitIDToken = true },
			verifier: func(r AuthorizationRequest) string { return r.Verifier },
		},
		{
			name:     "wrong PKCE verifier",
			setup:    func(*authtest.Provider) {},
			verifier: func(AuthorizationRequest) string { return "not-the-verifier-not-the-verifier-not-the" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := authtest.NewProvider(t)
			tc.setup(fake)
			p := newTestGoogleProvider(t, fake)
			ctx := context.Background()

			req, err := NewAuthorizationRequest()
			require.NoError(t, err)
			authURL, err := p.AuthURL(ctx, req)
			require.NoError(t, err)
			code, _ := fake.Authorize(t, authURL)

			_, err = p.Exchange(ctx, code, tc.verifier(req))
			assert.ErrorIs(t, err, apperror.ErrOAuthExchange)
		})
	}
}

// =========================================================================
// ID TOKEN VALIDATION
// =========================================================================

func TestVerifyIDToken_Rejects(t *testing.T) {
	fake := authtest.NewProvider(t)
	p := newTestGoogleProvider(t, fake)
	id := authtest.Identity{Subject: "g123", Email: "a@b.com", Name: "A"}
	const nonce = "expected-nonce"

	foreignKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sign := func(mutate func(jwt.MapClaims)) string {
		claims := fake.Claims(id, nonce)
		mutate(claims)
		return fake.Sign(claims)
	}

	tests := []struct {
		name  string
		token string
		nonce string
	}{
		{"nonce mismatch", sign(func(jwt.MapClaims) {}), "other-nonce"},
		{"empty expected nonce", sign(func(c jwt.MapClaims) { c["nonce"] = "" }), ""},
		{"wrong audience", sign(func(c jwt.MapClaims) { c["aud"] = "someone-else" }), nonce},
		{"wrong issuer", sign(func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }), nonce},
		{"expired", sign(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-2 * time.Hour).Unix() }), nonce},
		{"missing exp", sign(func(c jwt.MapClaims) { delete(c, "exp") }), nonce},
		{"missing subject", sign(func(c jwt.MapClaims) { delete(c, "sub") }), nonce},
		{
			name: "signed by unknown key",
			token: func() string {
				tok := jwt.NewWithClaims(jwt.SigningMethodRS256, fake.Claims(id, nonce))
				tok.Header["kid"] = "unknown"
				s, err := tok.SignedString(foreignKey)
				require.NoError(t, err)
				return s
			}(),
			nonce: nonce,
		},
		{
			name: "HS256 instead of RS256",
			token: func() string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, fake.Claims(id, nonce)).SignedString([]byte("client-secret"))
				require.NoError(t, err)
				return s
			}(),
			nonce: nonce,
		},
		{"garbage", "not.a.jwt", nonce},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.VerifyIDToken(context.Background(), tc.token, tc.nonce)
			assert.ErrorIs(t, err, apperror.ErrTokenValidation)
		})
	}
}

func TestVerifyIDToken_RefetchesKeysAfterRotation(t *testing.T) {
	fake := authtest.NewProvider(t)
	p := newTestGoogleProvider(t, fake)
	id := authtest.Identity{Subject: "g123"}
	ctx := context.Background()

	_, err := p.VerifyIDToken(ctx, fake.Sign(fake.Claims(id, "n1")), "n1")
	require.NoError(t, err)

	fake.RotateKey(t)

	got, err := p.VerifyIDToken(ctx, fake.Sign(fake.Claims(id, "n2")), "n2")
	require.NoError(t, err)
	assert.Equal(t, "g123", got.Subject)
}

func TestVerifyIDToken_ConcurrentLogins(t *testing.T) {
	fake := authtest.NewProvider(t)
	p := newTestGoogleProvider(t, fake)
	ctx := context.Background()

	const logins = 8
	errs := make(chan error, logins)
	var wg sync.WaitGroup
	for i := range logins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce := fmt.Sprintf("nonce-%d", i)
			_, err := p.VerifyIDToken(ctx, fake.Sign(fake.Claims(authtest.Identity{Subject: "g123"}, nonce)), nonce)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestGoogleProvider_RetriesDiscoveryAfterFailure(t *testing.T) {
	fake := authtest.NewProvider(t)
	p, err := NewGoogleProvider(ProviderConfig{
		ClientID:     authtest.ClientID,
		ClientSecret: authtest.ClientSecret,
		IssuerURL:    fake.URL() + "/missing",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)

	req, err := NewAuthorizationRequest()
	require.NoError(t, err)
	_, err = p.AuthURL(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrOAuthExchange)

	p.cfg.IssuerURL = fake.URL()
	_, err = p.AuthURL(context.Background(), req)
	assert.NoError(t, err, "a failed discovery must not be cached")
}
