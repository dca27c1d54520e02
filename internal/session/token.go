package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "formgate"

// Codec signs sessions into cookie values and verifies them back.
//
// The cookie value is an HS256 JWT. The session is readable by the client
// (like any signed cookie) but cannot be altered without the secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec creates a Codec. The secret should be at least 32 bytes of random
// data in production; anything shorter than 16 characters is rejected.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("session: secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	return &Codec{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of an encoded session.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

type claims struct {
	jwt.RegisteredClaims
	Session Session `json:"sess"`
}

// Encode signs s with the codec's lifetime.
func (c *Codec) Encode(s *Session) (string, error) {
	return c.EncodeWithDuration(s, c.ttl)
}

// EncodeWithDuration signs s with a custom lifetime. Used in tests to build
// expired cookies.
func (c *Codec) EncodeWithDuration(s *Session, d time.Duration) (string, error) {
	now := time.Now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Session: *s,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: signing: %w", err)
	}
	return signed, nil
}

// Decode verifies a cookie value and returns the session it carries.
func (c *Codec) Decode(value string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		value,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("session: expired")
		}
		return nil, fmt.Errorf("session: invalid cookie: %w", err)
	}

	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, errors.New("session: invalid claims")
	}

	s := cl.Session
	return &s, nil
}
