package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Cookies carry signed OAuth state; Secure is off for local dev.
	secureCookies bool

	// Services
	authService    driving.AuthService
	oauthService   driving.OAuthService
	accountService driving.AccountService
	publishService driving.PublishService
	tokenService   driving.TokenService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	SecureCookies  bool
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		SecureCookies:  true,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	oauthService driving.OAuthService,
	accountService driving.AccountService,
	publishService driving.PublishService,
	tokenService driving.TokenService,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		secureCookies:  cfg.SecureCookies,
		authService:    authService,
		oauthService:   oauthService,
		accountService: accountService,
		publishService: publishService,
		tokenService:   tokenService,
		db:             db,
		redisClient:    redisClient,
	}

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware().Handler(handler)
	handler = NewRecoveryMiddleware().Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// Connection flow endpoints
	s.router.Handle("GET /api/v1/connect/{platform}/start",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleConnectStart)))
	// Callback is public - receives redirects from OAuth providers
	s.router.HandleFunc("GET /api/v1/connect/callback", s.handleConnectCallback)

	// Account endpoints (authenticated)
	s.router.Handle("GET /api/v1/accounts",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListAccounts)))
	s.router.Handle("GET /api/v1/accounts/{platform}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetAccount)))
	s.router.Handle("DELETE /api/v1/accounts/{platform}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDisconnectAccount)))

	// Publishing endpoints (authenticated)
	s.router.Handle("POST /api/v1/posts",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCreatePost)))
	s.router.Handle("GET /api/v1/posts/metrics",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetPostMetrics)))

	// Admin endpoints (admin-only)
	s.router.Handle("POST /api/v1/admin/tokens/refresh",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRefreshSweep))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
