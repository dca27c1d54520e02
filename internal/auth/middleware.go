package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/session"
)

// LoginPath is where anonymous requests to protected pages are sent.
const LoginPath = "/login"

// LoginRequiredMessage is flashed when the gate redirects to the login page.
const LoginRequiredMessage = "Please log in to access this page."

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "user", u), ANY package that knows the string "user"
// can read or shadow your value. Using a package-private type prevents
// collisions: only THIS package can create a key of type contextKey.
type contextKey string

const userKey contextKey = "user"

// UserResolver turns the user ID stored in a session into a user record.
// It returns an apperror.ErrNotFound error when the ID no longer exists.
type UserResolver interface {
	ResolveUser(ctx context.Context, id string) (*model.User, error)
}

// RequireLogin is a middleware that enforces authentication on protected
// pages. It must run after session.Manager.Middleware.
//
// Two cases are possible:
//   - Anonymous: the handler is not run. We flash LoginRequiredMessage
//     and redirect to LoginPath with 302 Found.
//   - Authenticated: the user record is loaded and stored in the request
//     context, where handlers read it with UserFromContext.
//
// A session whose user ID no longer resolves (the record was removed from
// the store) is logged out and treated as anonymous.
func RequireLogin(users UserResolver, sessions *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())

			user, err := resolve(r.Context(), users, s)
			if err != nil {
				logger.Error("resolving session user", slog.String("error", err.Error()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if user == nil {
				s.AddFlash(session.FlashInfo, LoginRequiredMessage)
				if err := sessions.Save(w, s); err != nil {
					logger.Error("saving session", slog.String("error", err.Error()))
				}
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalUser is a middleware that loads the user when the session is
// authenticated but never blocks the request. Handlers check for the user
// via UserFromContext.
func OptionalUser(users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolve(r.Context(), users, session.FromContext(r.Context()))
			if err != nil {
				logger.Warn("resolving session user", slog.String("error", err.Error()))
			}
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve returns (nil, nil) for anonymous sessions and for sessions whose
// user has disappeared; the latter are logged out.
func resolve(ctx context.Context, users UserResolver, s *session.Session) (*model.User, error) {
	if !s.IsAuthenticated() {
		return nil, nil
	}

	user, err := users.ResolveUser(ctx, s.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		s.Logout()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
