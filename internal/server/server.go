// Package server provides the HTTP server and routing for the tracker API.
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

	"github.com/tradefolio/tracker/internal/config"
	"github.com/tradefolio/tracker/internal/di"
	ledgerhandlers "github.com/tradefolio/tracker/internal/modules/ledger/handlers"
	markethandlers "github.com/tradefolio/tracker/internal/modules/market/handlers"
	portfoliohandlers "github.com/tradefolio/tracker/internal/modules/portfolio/handlers"
	usershandlers "github.com/tradefolio/tracker/internal/modules/users/handlers"
	watchlisthandlers "github.com/tradefolio/tracker/internal/modules/watchlist/handlers"
)

const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
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
			cfg.Container.Hub,
			cfg.Container.Scheduler,
			cfg.Container.TrackerDB,
			cfg.Container.CacheDB,
		),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no read/write deadlines: websocket connections are long-lived,
		// API requests are bounded by middleware.Timeout
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container
	auth := c.UserService.RequireAuth

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			usershandlers.NewHandler(c.UserService, s.log).RegisterRoutes(r, auth)
			ledgerhandlers.NewHandler(c.Ledger, s.log).RegisterRoutes(r, auth)
			markethandlers.NewHandler(c.MarketData, s.log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(c.PortfolioService, s.log).RegisterRoutes(r, auth)
			watchlisthandlers.NewHandler(c.WatchlistService, s.log).RegisterRoutes(r, auth)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
			})
		})
	})

	// websocket routes skip the timeout and compression middleware
	s.router.Route("/ws", c.Hub.RegisterRoutes)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
