// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects stores, services,
// handlers, middleware and routes, and decides:
// - Which store implementation backs the application (JSON files or SQLite)
// - Which URL patterns map to which handler functions
// - Which routes sit behind the login gate
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → New() creates:
//	  stores (jsonfile or sqlite) → AuthService / FormService → handlers
//	  session.Codec → session.Manager → Renderer, login gate
//	  GoogleProvider (only when configured) → AuthHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/formgate/internal/auth"
	"github.com/sakif/formgate/internal/config"
	"github.com/sakif/formgate/internal/handler"
	"github.com/sakif/formgate/internal/middleware"
	"github.com/sakif/formgate/internal/repository"
	"github.com/sakif/formgate/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/formgate/internal/repository/sqlite"
	"github.com/sakif/formgate/internal/service"
	"github.com/sakif/formgate/internal/session"
	"github.com/sakif/formgate/internal/telemetry"
)

// serviceName names the server in traces.
const serviceName = "formgate"

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// With STORE_DRIVER=sqlite the Server owns a database connection. Run
// closes it on the way out to flush the WAL and release the file lock.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	users    repository.UserRepository
	forms    repository.FormRepository
	sessions *session.Manager
	google   handler.IdentityProvider // nil when Google login is not configured
	closeFn  func() error
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Open the stores for the configured driver
//  2. Create the session manager and the optional Google provider
//  3. Create services and handlers, and wire them to routes
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	users, forms, closeFn, err := openStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		users:   users,
		forms:   forms,
		closeFn: closeFn,
	}

	if err := s.setup(); err != nil {
		s.Close() // Clean up stores if wiring fails
		return nil, err
	}

	return s, nil
}

func (s *Server) setup() error {
	codec, err := session.NewCodec(s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating session codec: %w", err)
	}
	s.sessions = session.NewManager(codec, s.config.SecureCookies, s.logger)

	if s.config.SessionSecretGenerated {
		s.logger.Warn("SESSION_SECRET not set, using a random secret; sessions end when the server restarts")
	}

	if s.config.GoogleEnabled() {
		google, err := auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     s.config.GoogleClientID,
			ClientSecret: s.config.GoogleClientSecret,
			RedirectURL:  s.config.GoogleRedirectURL,
			IssuerURL:    s.config.GoogleIssuerURL,
			Timeout:      s.config.OAuthTimeout,
			HTTPClient:   telemetry.Client(&http.Client{Timeout: s.config.OAuthTimeout}),
		})
		if err != nil {
			return fmt.Errorf("creating google provider: %w", err)
		}
		s.google = google
	} else {
		s.logger.Info("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, Google login disabled")
	}

	if s.config.PasswordMode == auth.PasswordModePlaintext {
		s.logger.Warn("passwords are stored in plaintext; set PASSWORD_MODE=bcrypt for new accounts")
	}

	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

// openStores returns the credential and form stores for cfg.StoreDriver.
// The returned close function releases whatever the stores hold open.
func openStores(cfg config.Config, logger *slog.Logger) (repository.UserRepository, repository.FormRepository, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		// Ensure the data directory exists (like `mkdir -p`).
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info("using sqlite store", slog.String("path", cfg.DBPath))
		return db, db.Forms(), db.Close, nil

	default:
		users, err := jsonfile.NewUserStore(cfg.UsersFile, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening user store: %w", err)
		}
		forms, err := jsonfile.NewFormStore(cfg.FormsFile, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening form store: %w", err)
		}
		logger.Info("using json store",
			slog.String("users", cfg.UsersFile),
			slog.String("forms", cfg.FormsFile),
		)
		return users, forms, func() error { return nil }, nil
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET      /                          → home (anonymous visitors go to /login)
// GET/POST /login                     → password login
// GET      /login/google              → start Google login
// GET      /login/google/authorized   → Google callback
// GET/POST /register                  → create a password account
// GET      /healthz                   → liveness (JSON)
// GET      /static/*                  → stylesheet
// --- login required ---
// GET      /logout, /about, /service, /so, /account, /admin
// GET/POST /form
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID → 2. RealIP → 3. Logger → 4. Recoverer → 5. SecureHeaders
// → 6. Timeout → 7. session loading. The login gate runs per route group.
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecureHeaders)
	s.router.Use(chimiddleware.Timeout(writeTimeout))
	s.router.Use(s.sessions.Middleware)

	// === Dependencies ===
	passwords, err := auth.NewPasswordHasher(s.config.PasswordMode)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(s.users, passwords, s.logger)
	formService := service.NewFormService(s.forms, s.logger)

	render, err := handler.NewRenderer(s.sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	authHandler := handler.NewAuthHandler(authService, s.google, render, s.logger)
	pageHandler := handler.NewPageHandler(render)
	formHandler := handler.NewFormHandler(formService, render, s.logger)

	// === Public Routes ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", handler.StaticHandler()))
	s.router.Get("/healthz", handler.HandleHealth)

	s.router.With(auth.OptionalUser(authService, s.logger)).Get("/", pageHandler.HandleHome)

	s.router.Get("/login", authHandler.HandleLoginPage)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/login/google", authHandler.HandleGoogleLogin)
	s.router.Get("/login/google/authorized", authHandler.HandleGoogleCallback)
	s.router.Get("/register", authHandler.HandleRegisterPage)
	s.router.Post("/register", authHandler.HandleRegister)

	// === Protected Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(authService, s.sessions, s.logger))

		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/about", pageHandler.HandleAbout)
		r.Get("/service", pageHandler.HandleService)
		r.Get("/so", pageHandler.HandleSO)
		r.Get("/account", pageHandler.HandleAccount)
		r.Get("/form", formHandler.HandleFormPage)
		r.Post("/form", formHandler.HandleSubmit)
		r.Get("/admin", formHandler.HandleAdmin)
	})

	return nil
}

// Handler returns the fully wrapped HTTP handler, including tracing.
func (s *Server) Handler() http.Handler {
	return telemetry.Handler(s.router, serviceName)
}

// Close releases the stores.
func (s *Server) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the stores
func (s *Server) Run(ctx context.Context) error {
	// Ensure the stores are closed when the server stops.
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreDriver),
			slog.Bool("google", s.google != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		// Give in-flight requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
