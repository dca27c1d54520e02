// Package auth contains the authentication building blocks: password
// checking, the Google OpenID Connect provider and the login gate
// middleware.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password modes accepted by NewPasswordHasher.
const (
	// PasswordModePlaintext stores and compares passwords exactly as typed.
	// This is the historical behaviour of the application and a known
	// security defect: anyone who can read users.json can read every
	// password. It stays the default so existing documents keep working.
	PasswordModePlaintext = "plaintext"
	// PasswordModeBcrypt stores bcrypt hashes. Existing plaintext documents
	// do not verify under this mode.
	PasswordModeBcrypt = "bcrypt"
)

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordHasher turns a submitted password into its stored form and checks
// submitted passwords against the stored form.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(stored, plaintext string) error
}

// NewPasswordHasher returns the hasher for mode.
func NewPasswordHasher(mode string) (PasswordHasher, error) {
	switch mode {
	case "", PasswordModePlaintext:
		return PlaintextPasswords{}, nil
	case PasswordModeBcrypt:
		return NewPasswordService(), nil
	default:
		return nil, fmt.Errorf("auth: unknown password mode %q", mode)
	}
}

// PlaintextPasswords is the PasswordHasher that does no hashing at all.
// See PasswordModePlaintext.
type PlaintextPasswords struct{}

// Hash returns plaintext unchanged.
func (PlaintextPasswords) Hash(plaintext string) (string, error) {
	return plaintext, nil
}

// Verify requires an exact match.
func (PlaintextPasswords) Verify(stored, plaintext string) error {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Use bcrypt.MinCost (4) in tests; never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// Returns an error if the plaintext is longer than 72 bytes, which bcrypt
// would otherwise truncate silently.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil if they match, a non-nil error if they don't.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
