// Package session holds the per-browser state of the application.
//
// A Session is an explicit value, loaded from a signed cookie by
// Manager.Middleware and handed to handlers through the request context.
// Handlers change it and call Manager.Save before writing the response.
//
// State machine:
//
//	Anonymous ──Login(id)──▶ Authenticated(id) ──Logout()──▶ Anonymous
//
// Besides the user ID a session carries the values that bind an in-flight
// Google authorization request to its callback (nonce, state, PKCE verifier)
// and the flash messages waiting to be shown on the next rendered page.
package session

// Flash categories used by the templates for styling.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashInfo    = "info"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Session is the decoded content of the session cookie.
type Session struct {
	UserID       string  `json:"uid,omitempty"`
	OAuthNonce   string  `json:"nonce,omitempty"`
	OAuthState   string  `json:"state,omitempty"`
	PKCEVerifier string  `json:"pkce,omitempty"`
	Flashes      []Flash `json:"flashes,omitempty"`
}

// IsAuthenticated reports whether a user is logged in.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != ""
}

// Login moves the session to Authenticated(userID).
func (s *Session) Login(userID string) {
	s.UserID = userID
}

// Logout moves the session back to Anonymous. Pending flashes survive so
// the "logged out" message can still be shown.
func (s *Session) Logout() {
	s.UserID = ""
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns the queued messages and clears them.
func (s *Session) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// BeginOAuth records the values of a new authorization request, replacing
// any request still in flight.
func (s *Session) BeginOAuth(state, nonce, verifier string) {
	s.OAuthState = state
	s.OAuthNonce = nonce
	s.PKCEVerifier = verifier
}

// TakeOAuth returns the values stored by BeginOAuth and discards them, so a
// callback can be completed at most once.
func (s *Session) TakeOAuth() (state, nonce, verifier string) {
	state, nonce, verifier = s.OAuthState, s.OAuthNonce, s.PKCEVerifier
	s.OAuthState, s.OAuthNonce, s.PKCEVerifier = "", "", ""
	return state, nonce, verifier
}

// isEmpty reports whether there is nothing worth storing in a cookie.
func (s *Session) isEmpty() bool {
	return s.UserID == "" && s.OAuthNonce == "" && s.OAuthState == "" &&
		s.PKCEVerifier == "" && len(s.Flashes) == 0
}
