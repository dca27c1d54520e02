package session

import (
	"context"
	"log/slog"
	"net/http"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

type contextKey string

const sessionKey contextKey = "session"

// Manager moves sessions between cookies and request contexts.
type Manager struct {
	codec  *Codec
	secure bool
	logger *slog.Logger
}

// NewManager creates a Manager. secure marks the cookie Secure (HTTPS only).
func NewManager(codec *Codec, secure bool, logger *slog.Logger) *Manager {
	return &Manager{codec: codec, secure: secure, logger: logger}
}

// Load decodes the session cookie of r. A missing, tampered or expired
// cookie yields an empty (Anonymous) session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}

	s, err := m.codec.Decode(cookie.Value)
	if err != nil {
		m.logger.Debug("discarding session cookie", slog.String("error", err.Error()))
		return &Session{}
	}
	return s
}

// Save writes s back as the session cookie. It must be called before the
// response headers are sent. An empty session deletes the cookie.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	if s.isEmpty() {
		m.clear(w)
		return nil
	}

	value, err := m.codec.Encode(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.codec.TTL().Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware loads the session of every request into its context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session stored by Middleware. Without one it
// returns a fresh empty session, so callers never deal with nil.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
