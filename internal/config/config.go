// Package config loads the server configuration from environment variables.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sakif/formgate/internal/auth"
)

// Store drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// minSecretLength matches what session.NewCodec accepts.
const minSecretLength = 16

// Config holds everything the server needs to start.
type Config struct {
	Port     int        `env:"PORT" envDefault:"8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"json"`
	UsersFile   string `env:"USERS_FILE" envDefault:"users.json"`
	FormsFile   string `env:"FORMS_FILE" envDefault:"forms.json"`
	DBPath      string `env:"DB_PATH" envDefault:"data/formgate.db"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`
	PasswordMode  string        `env:"PASSWORD_MODE" envDefault:"plaintext"`

	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	GoogleIssuerURL    string        `env:"GOOGLE_ISSUER_URL" envDefault:"https://accounts.google.com"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	// SessionSecretGenerated is set when SESSION_SECRET was empty and a
	// random secret was generated. Sessions then do not survive a restart.
	SessionSecretGenerated bool
}

// Load parses the environment, fills derived defaults and validates the
// result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) finalize() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	switch c.StoreDriver {
	case DriverJSON, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverJSON, DriverSQLite, c.StoreDriver))
	}

	switch c.PasswordMode {
	case auth.PasswordModePlaintext, auth.PasswordModeBcrypt:
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_MODE must be %q or %q, got %q", auth.PasswordModePlaintext, auth.PasswordModeBcrypt, c.PasswordMode))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.OAuthTimeout <= 0 {
		errs = append(errs, errors.New("OAUTH_TIMEOUT must be positive"))
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}
	if c.GoogleRedirectURL == "" {
		c.GoogleRedirectURL = fmt.Sprintf("http://localhost:%d/login/google/authorized", c.Port)
	}

	switch {
	case c.SessionSecret == "":
		secret, err := randomSecret()
		if err != nil {
			errs = append(errs, err)
			break
		}
		c.SessionSecret = secret
		c.SessionSecretGenerated = true
	case len(c.SessionSecret) < minSecretLength:
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSecretLength))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
