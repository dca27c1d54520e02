package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/service"
	"github.com/sakif/formgate/internal/session"
)

// homePath is where every successful login lands.
const homePath = "/"

// Flash messages shown by the authentication pages.
const (
	msgLoggedIn            = "Logged in successfully"
	msgGoogleLoggedIn      = "Logged in with Google"
	msgRegistered          = "Registration successful, please log in"
	msgLoggedOut           = "You have been logged out"
	msgGoogleNotConfigured = "Google login is not configured"
)

// IdentityProvider is the OpenID Connect provider behind "Sign in with
// Google". *auth.GoogleProvider implements it.
type IdentityProvider interface {
	AuthURL(ctx context.Context, req auth.AuthorizationRequest) (string, error)
	Exchange(ctx context.Context, code, verifier string) (string, error)
	VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*auth.Identity, error)
}

// AuthHandler manages password login, registration, the Google login flow
// and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage / HandleLogin       → GET/POST /login
//   - HandleRegisterPage / HandleRegister → GET/POST /register
//   - HandleGoogleLogin                   → redirect to Google
//   - HandleGoogleCallback                → verify the result and log in
//   - HandleLogout                        → back to anonymous
type AuthHandler struct {
	auth   *service.AuthService
	google IdentityProvider // nil when Google login is not configured
	render *Renderer
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil.
func NewAuthHandler(authService *service.AuthService, google IdentityProvider, render *Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		google: google,
		render: render,
		logger: logger,
	}
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "login", h.loginData(""))
}

// HandleLogin checks the submitted credentials.
//
// HTTP: POST /login
//
// On success the session becomes Authenticated and the browser goes to the
// home page. On failure the form is shown again with a flash message.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Render(w, r, statusFor(err), "login", h.loginData(username))
		return
	}

	s := session.FromContext(r.Context())
	s.Login(user.ID)
	s.AddFlash(session.FlashSuccess, msgLoggedIn)
	h.render.Redirect(w, r, homePath)
}

// HandleRegisterPage renders the registration form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "register", &PageData{Title: "Register"})
}

// HandleRegister creates a password account.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")

	_, err := h.auth.Register(r.Context(), username, r.PostFormValue("password"), r.PostFormValue("confirm"))
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Render(w, r, statusFor(err), "register", &PageData{
			Title:  "Register",
			Values: map[string]string{"username": username},
		})
		return
	}

	session.FromContext(r.Context()).AddFlash(session.FlashSuccess, msgRegistered)
	h.render.Redirect(w, r, auth.LoginPath)
}

// HandleGoogleLogin starts the Google login flow.
//
// HTTP: GET /login/google
//
// A fresh state, nonce and PKCE verifier are stored in the session, which
// replaces any flow still in flight, and the browser is sent to Google.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.notConfigured(w, r)
		return
	}

	req, err := auth.NewAuthorizationRequest()
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Redirect(w, r, auth.LoginPath)
		return
	}

	authURL, err := h.google.AuthURL(r.Context(), req)
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Redirect(w, r, auth.LoginPath)
		return
	}

	session.FromContext(r.Context()).BeginOAuth(req.State, req.Nonce, req.Verifier)
	h.render.Redirect(w, r, authURL)
}

// HandleGoogleCallback completes the Google login flow.
//
// HTTP: GET /login/google/authorized?code=...&state=...
//
// Steps:
//  1. Take the state, nonce and verifier out of the session. They are
//     single use, whatever the outcome.
//  2. Refuse provider errors and a state that does not match.
//  3. Exchange the code (with the PKCE verifier) for an ID token.
//  4. Verify the ID token, including the nonce.
//  5. Load or provision the account and log it in.
//
// Every failure ends with a flash message and a redirect to /login.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.notConfigured(w, r)
		return
	}

	s := session.FromContext(r.Context())
	wantState, nonce, verifier := s.TakeOAuth()

	identity, err := h.completeGoogleLogin(r, wantState, nonce, verifier)
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Redirect(w, r, auth.LoginPath)
		return
	}

	user, err := h.auth.LoginWithGoogle(r.Context(), identity)
	if err != nil {
		flashError(r, h.logger, err)
		h.render.Redirect(w, r, auth.LoginPath)
		return
	}

	s.Login(user.ID)
	s.AddFlash(session.FlashSuccess, msgGoogleLoggedIn)
	h.render.Redirect(w, r, homePath)
}

func (h *AuthHandler) completeGoogleLogin(r *http.Request, wantState, nonce, verifier string) (*auth.Identity, error) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		return nil, apperror.OAuthExchange(errors.New("provider returned " + providerErr))
	}
	if wantState == "" || q.Get("state") != wantState {
		return nil, apperror.TokenValidation(errors.New("state mismatch"))
	}

	rawIDToken, err := h.google.Exchange(r.Context(), q.Get("code"), verifier)
	if err != nil {
		return nil, err
	}

	return h.google.VerifyIDToken(r.Context(), rawIDToken, nonce)
}

// HandleLogout ends the session.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	s.Logout()
	s.AddFlash(session.FlashSuccess, msgLoggedOut)
	h.render.Redirect(w, r, auth.LoginPath)
}

func (h *AuthHandler) notConfigured(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).AddFlash(session.FlashDanger, msgGoogleNotConfigured)
	h.render.Redirect(w, r, auth.LoginPath)
}

func (h *AuthHandler) loginData(username string) *PageData {
	return &PageData{
		Title:         "Login",
		Values:        map[string]string{"username": username},
		GoogleEnabled: h.google != nil,
	}
}
