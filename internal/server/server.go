// Package server wires the StudySync HTTP server: storage, services,
// handlers, middleware and routes.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ─┬→ sqlite.DB ──────────────┐
//	               ├→ auth.TokenService ──────┤
//	               ├→ auth.GoogleProvider ────┼→ services → handlers → routes
//	               └→ calendar.Client ────────┘
//
// This is the composition root: every dependency is built here and passed
// down, so no package reaches for globals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/studysync/studysync-server/internal/auth"
	"github.com/studysync/studysync-server/internal/calendar"
	"github.com/studysync/studysync-server/internal/config"
	"github.com/studysync/studysync-server/internal/handler"
	"github.com/studysync/studysync-server/internal/middleware"
	sqliteRepo "github.com/studysync/studysync-server/internal/repository/sqlite"
	"github.com/studysync/studysync-server/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the database connection. The connection is
// closed when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database (running migrations) and builds the router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, for tests that drive the full stack with
// httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and every route.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                              public
//	POST   /api/users/register                   public
//	POST   /api/users/login                      public
//	GET    /api/google-calendar/auth/callback    public (signed state)
//	everything else under /api                   bearer token
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: tags each request; the logger prints it
//  2. RealIP: client IP from proxy headers
//  3. Logger: one line per request
//  4. Recoverer: a panic becomes a 500 instead of killing the process
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Credentials ===
	tokens, err := auth.NewTokenService(s.config.JWT.Secret, s.config.JWT.TTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(auth.DefaultCost)

	if !s.config.Google.Enabled() {
		s.logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, google calendar linking will fail")
	}
	google := auth.NewGoogleProvider(s.config.Google.ClientID, s.config.Google.ClientSecret, s.config.Google.RedirectURL)
	calendarClient := calendar.NewClient(google.Config(), s.db, s.logger, s.config.Google.APIEndpoint)

	// === Services ===
	// s.db implements every repository interface.
	authService := service.NewAuthService(s.db, s.db, tokens, passwords, s.logger)
	taskService := service.NewTaskService(s.db, s.logger)
	eventService := service.NewEventService(s.db, s.db, s.logger)
	statsService := service.NewStatsService(s.db, s.db, s.logger)
	progressService := service.NewProgressService(s.db, s.db, s.logger)
	calendarService := service.NewCalendarService(s.db, s.db, google, calendarClient, tokens, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, s.logger)
	taskHandler := handler.NewTaskHandler(taskService, s.logger)
	eventHandler := handler.NewEventHandler(eventService, s.logger)
	statsHandler := handler.NewStatsHandler(statsService, s.logger)
	progressHandler := handler.NewProgressHandler(progressService, s.logger)
	calendarHandler := handler.NewCalendarHandler(calendarService, s.config.Google.FrontendCalendarURL, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(tokens, authService)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/users/register", authHandler.HandleRegister)
		r.Post("/users/login", authHandler.HandleLogin)
		r.Get("/google-calendar/auth/callback", calendarHandler.HandleCallback)

		// Bearer token required
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/users/me", authHandler.HandleMe)
			r.Get("/users/contacts", authHandler.HandleListContacts)
			r.Post("/users/contacts", authHandler.HandleAddContact)

			r.Get("/tasks", taskHandler.HandleList)
			r.Post("/tasks", taskHandler.HandleCreate)
			r.Put("/tasks/{id}", taskHandler.HandleUpdate)
			r.Delete("/tasks/{id}", taskHandler.HandleDelete)

			r.Get("/events", eventHandler.HandleList)
			r.Post("/events", eventHandler.HandleCreate)
			r.Put("/events/{id}", eventHandler.HandleUpdate)
			r.Delete("/events/{id}", eventHandler.HandleDelete)

			r.Get("/stats", statsHandler.HandleDashboard)

			r.Post("/progress/goal", progressHandler.HandleSetGoal)
			r.Post("/progress/session", progressHandler.HandleAddSession)
			r.Get("/progress/weekly", progressHandler.HandleWeekly)

			r.Get("/google-calendar/auth-url", calendarHandler.HandleAuthURL)
			r.Post("/google-calendar/freebusy", calendarHandler.HandleFreeBusy)
			r.Get("/google-calendar/events", calendarHandler.HandleListEvents)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes the WAL, releases the file)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
