// Package apperror defines the domain errors shared by the service and
// handler layers. Services return them; handlers map them to HTTP
// responses or flash messages with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")

	// Authentication failures. Each is shown to the user as a flash message
	// and never retried.
	ErrPasswordMismatch   = errors.New("password mismatch")
	ErrDuplicateUser      = errors.New("duplicate user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOAuthExchange      = errors.New("oauth exchange failed")
	ErrTokenValidation    = errors.New("token validation failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// PasswordMismatch is returned by registration when the password and its
// confirmation differ.
func PasswordMismatch() *AppError {
	return &AppError{
		Err:     ErrPasswordMismatch,
		Message: "Passwords do not match",
		Field:   "confirm",
	}
}

// DuplicateUser is returned by registration when the username is taken.
func DuplicateUser(username string) *AppError {
	return &AppError{
		Err:     ErrDuplicateUser,
		Message: fmt.Sprintf("Username %q already exists", username),
		Field:   "username",
	}
}

// InvalidCredentials is returned by password login. The message is the same
// for an unknown user and a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid username or password",
	}
}

// OAuthExchange wraps a failed authorization-code exchange.
func OAuthExchange(cause error) error {
	return (&AppError{
		Err:     ErrOAuthExchange,
		Message: "Google login failed",
	}).withCause(cause)
}

// TokenValidation wraps a rejected identity token.
func TokenValidation(cause error) error {
	return (&AppError{
		Err:     ErrTokenValidation,
		Message: "ID token validation failed",
	}).withCause(cause)
}

// withCause keeps the sentinel reachable through errors.Is while also
// exposing the underlying cause for logging.
func (e *AppError) withCause(cause error) error {
	if cause == nil {
		return e
	}
	return &causedError{AppError: e, cause: cause}
}

type causedError struct {
	*AppError
	cause error
}

func (e *causedError) Error() string {
	return e.Message + ": " + e.cause.Error()
}

func (e *causedError) Unwrap() []error {
	return []error{e.AppError, e.cause}
}
