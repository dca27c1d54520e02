package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/formgate/internal/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"password mismatch", apperror.PasswordMismatch(), http.StatusBadRequest},
		{"validation", apperror.ValidationFailed("username", "Username is required"), http.StatusBadRequest},
		{"invalid credentials", apperror.InvalidCredentials(), http.StatusUnauthorized},
		{"not found", apperror.NotFound("user", "alice"), http.StatusNotFound},
		{"duplicate user", apperror.DuplicateUser("alice"), http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("store: %w", apperror.Conflict("user", "alice")), http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}
