// Package server provides the HTTP server and routing for the bazaar tracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/bazaar-tracker/internal/config"
	"github.com/aristath/bazaar-tracker/internal/database"
	"github.com/aristath/bazaar-tracker/internal/di"
	"github.com/aristath/bazaar-tracker/internal/domain"
	ledgerhandlers "github.com/aristath/bazaar-tracker/internal/modules/ledger/handlers"
	markethandlers "github.com/aristath/bazaar-tracker/internal/modules/market/handlers"
	optimizationhandlers "github.com/aristath/bazaar-tracker/internal/modules/optimization/handlers"
	pnlhandlers "github.com/aristath/bazaar-tracker/internal/modules/pnl/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Config.DataDir,
			[]*database.DB{cfg.Container.LedgerDB, cfg.Container.CacheDB},
			cfg.Container.Scheduler,
			cfg.Container.BackupService,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// WriteTimeout is left unset so event streams stay open;
		// the timeout middleware bounds regular requests.
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event streams are long-lived and stay outside the request timeout
		streams := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", streams.ServeHTTP)
		r.Get("/events/ws", streams.ServeWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/jobs", s.systemHandlers.HandleListJobs)
				r.Post("/jobs/{name}/run", s.systemHandlers.HandleRunJob)
				r.Get("/backups", s.systemHandlers.HandleListBackups)
				r.Post("/backup", s.systemHandlers.HandleBackup)
			})

			ledgerhandlers.NewHandler(s.container.LedgerStore, s.log).RegisterRoutes(r)
			pnlhandlers.NewHandler(s.container.PnLService, s.log).RegisterRoutes(r)
			optimizationhandlers.NewHandler(
				s.container.OptimizationService,
				optimizationhandlers.Defaults{
					Period:       domain.Period(s.cfg.Optimizer.Period),
					RiskAversion: s.cfg.Optimizer.RiskAversion,
				},
				s.log,
			).RegisterRoutes(r)
			markethandlers.NewHandler(s.container.MarketService, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
