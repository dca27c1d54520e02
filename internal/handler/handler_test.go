package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/auth/authtest"
	"github.com/sakif/formgate/internal/repository/jsonfile"
	"github.com/sakif/formgate/internal/service"
	"github.com/sakif/formgate/internal/session"
)

// =========================================================================
// TEST APP
// =========================================================================

// testApp runs the handlers behind a real router and keeps a cookie jar,
// so a test reads like a browser session.
type testApp struct {
	server *httptest.Server
	client *http.Client
	users  *jsonfile.UserStore
	forms  *jsonfile.FormStore
	render *Renderer
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestApp wires the handlers with JSON stores in a temp dir. google may
// be nil to simulate an unconfigured Google login.
func newTestApp(t *testing.T, google IdentityProvider) *testApp {
	t.Helper()

	logger := testLogger()
	dir := t.TempDir()

	users, err := jsonfile.NewUserStore(filepath.Join(dir, "users.json"), logger)
	require.NoError(t, err)
	forms, err := jsonfile.NewFormStore(filepath.Join(dir, "forms.json"), logger)
	require.NoError(t, err)

	codec, err := session.NewCodec("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	sessions := session.NewManager(codec, false, logger)

	render, err := NewRenderer(sessions, logger)
	require.NoError(t, err)

	authSvc := service.NewAuthService(users, auth.PlaintextPasswords{}, logger)
	formSvc := service.NewFormService(forms, logger)

	authHandler := NewAuthHandler(authSvc, google, render, logger)
	pageHandler := NewPageHandler(render)
	formHandler := NewFormHandler(formSvc, render, logger)

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.Get("/healthz", HandleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", StaticHandler()))
	r.With(auth.OptionalUser(authSvc, logger)).Get("/", pageHandler.HandleHome)
	r.Get("/login", authHandler.HandleLoginPage)
	r.Post("/login", authHandler.HandleLogin)
	r.Get("/login/google", authHandler.HandleGoogleLogin)
	r.Get("/login/google/authorized", authHandler.HandleGoogleCallback)
	r.Get("/register", authHandler.HandleRegisterPage)
	r.Post("/register", authHandler.HandleRegister)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(authSvc, sessions, logger))
		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/about", pageHandler.HandleAbout)
		r.Get("/service", pageHandler.HandleService)
		r.Get("/so", pageHandler.HandleSO)
		r.Get("/account", pageHandler.HandleAccount)
		r.Get("/form", formHandler.HandleFormPage)
		r.Post("/form", formHandler.HandleSubmit)
		r.Get("/admin", formHandler.HandleAdmin)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testApp{
		server: srv,
		client: newBrowser(t),
		users:  users,
		forms:  forms,
		render: render,
	}
}

// newBrowser returns a client with its own cookie jar that does not follow
// redirects, so tests can assert on each Location.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// response is a fully read HTTP response.
type response struct {
	status   int
	location string
	body     string
}

func (a *testApp) get(t *testing.T, path string) response {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	require.NoError(t, err)
	return readResponse(t, resp)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) response {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	return readResponse(t, resp)
}

func readResponse(t *testing.T, resp *http.Response) response {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(body),
	}
}

// register and login run the happy path for a password account.
func (a *testApp) register(t *testing.T, username, password string) {
	t.Helper()
	resp := a.post(t, "/register", url.Values{
		"username": {username}, "password": {password}, "confirm": {password},
	})
	require.Equal(t, http.StatusFound, resp.status, resp.body)
}

func (a *testApp) login(t *testing.T, username, password string) response {
	t.Helper()
	return a.post(t, "/login", url.Values{"username": {username}, "password": {password}})
}

// newGoogleProvider returns a real GoogleProvider pointed at fake.
func newGoogleProvider(t *testing.T, fake *authtest.Provider) *auth.GoogleProvider {
	t.Helper()

	p, err := auth.NewGoogleProvider(auth.ProviderConfig{
		ClientID:     authtest.ClientID,
		ClientSecret: authtest.ClientSecret,
		RedirectURL:  "http://app.test/login/google/authorized",
		IssuerURL:    fake.URL(),
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return p
}

// googleLogin drives the browser through the Google flow and returns the
// final callback response.
func (a *testApp) googleLogin(t *testing.T, fake *authtest.Provider) response {
	t.Helper()

	start := a.get(t, "/login/google")
	require.Equal(t, http.StatusFound, start.status)
	require.True(t, strings.HasPrefix(start.location, fake.URL()), "redirected to %q", start.location)

	code, state := fake.Authorize(t, start.location)
	return a.get(t, "/login/google/authorized?"+url.Values{"code": {code}, "state": {state}}.Encode())
}
