// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (store)
//	                   ↘ PasswordHasher (plaintext or bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Register password accounts and check password logins
//   - Provision accounts on first Google login
//   - Resolve the user behind a session ID for the login gate
//
// It never touches cookies or sessions: the handler decides what a
// successful login means for the browser.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/model"
	"github.com/sakif/formgate/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - passwords  auth.PasswordHasher        → stored form of passwords
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	passwords auth.PasswordHasher
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	passwords auth.PasswordHasher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a password account whose ID is the username.
//
// Checks run in this order:
//  1. password != confirm          → apperror.ErrPasswordMismatch
//  2. username is empty            → apperror.ErrValidation
//  3. username already in the store → apperror.ErrDuplicateUser
//
// The new account has an empty email. The store is not touched when any
// check fails.
func (s *AuthService) Register(ctx context.Context, username, password, confirm string) (*model.User, error) {
	if password != confirm {
		return nil, apperror.PasswordMismatch()
	}
	if username == "" {
		return nil, apperror.ValidationFailed("username", "Username is required")
	}

	stored, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	user := &model.User{
		ID:       username,
		Username: username,
		Email:    "",
		Password: &stored,
	}

	// Insert does the existence check and the write under the store lock,
	// so two concurrent registrations of one name cannot both succeed.
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.DuplicateUser(username)
		}
		return nil, fmt.Errorf("service/auth: registering %q: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// Login checks a username and password.
//
// Unknown users, wrong passwords and passwordless (Google) accounts all
// yield the same apperror.ErrInvalidCredentials, so the response does not
// reveal which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: loading user %q: %w", username, err)
	}

	if !user.HasPassword() {
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(*user.Password, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return user, nil
}

// LoginWithGoogle returns the account for a verified Google identity,
// creating it on first login.
//
// The account ID is the Google subject, which never changes, while the
// display name and email may. An existing account is returned as stored.
func (s *AuthService) LoginWithGoogle(ctx context.Context, id *auth.Identity) (*model.User, error) {
	if id == nil || id.Subject == "" {
		return nil, fmt.Errorf("service/auth: identity must have a subject")
	}

	user, err := s.users.Get(ctx, id.Subject)
	if err == nil {
		s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: loading user %q: %w", id.Subject, err)
	}

	user, err = s.users.Create(ctx, id.Subject, id.Name, id.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating user %q: %w", id.Subject, err)
	}

	s.logger.Info("user provisioned via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// ResolveUser returns the user for a session's user ID. It implements
// auth.UserResolver.
func (s *AuthService) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}
	return s.users.Get(ctx, id)
}

var _ auth.UserResolver = (*AuthService)(nil)
