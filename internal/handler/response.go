package handler

// RESPONSE HELPERS:
// Browser pages report errors as flash messages, not status pages. The
// helpers below translate domain errors from the service layer into a
// message for the user and a status code for the re-rendered form.
//
// The only JSON endpoint is the health check, which keeps writeJSON.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/session"
)

// genericErrorMessage is shown for errors that are not an *apperror.AppError.
// NEVER expose internal error details to the user: the raw message might
// contain file paths or SQL.
const genericErrorMessage = "Something went wrong, please try again"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// flashError queues a flash message describing err.
//
// errors.As walks the error chain, so an AppError wrapped by a service with
// fmt.Errorf("...: %w") is still found and its Message is shown.
func flashError(r *http.Request, logger *slog.Logger, err error) {
	s := session.FromContext(r.Context())

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		logger.Info("request rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		s.AddFlash(session.FlashDanger, appErr.Message)
		return
	}

	logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.AddFlash(session.FlashDanger, genericErrorMessage)
}

// statusFor maps a domain error to the status of a re-rendered form page.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrPasswordMismatch):
		return http.StatusBadRequest // 400
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized // 401
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, apperror.ErrDuplicateUser), errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError
	}
}
