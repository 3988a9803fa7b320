// Package server provides the HTTP server for the chatwire API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/internal/mcp"
	"github.com/chatwire-ai/chatwire/internal/provider"
	"github.com/chatwire-ai/chatwire/internal/runner"
	"github.com/chatwire-ai/chatwire/internal/tool"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for streaming responses
	}
}

// Server is the HTTP server.
type Server struct {
	config      *Config
	router      *chi.Mux
	httpSrv     *http.Server
	appConfig   *config.Config
	runner      runner.Runner
	toolReg     *tool.Registry
	providerReg *provider.Registry
	mcpClient   *mcp.Client
}

// New creates a new Server instance. The runner produces the response
// stream for chat requests; the registries back the catalog endpoints and
// may be nil.
func New(cfg *Config, appConfig *config.Config, run runner.Runner, toolReg *tool.Registry, providerReg *provider.Registry) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:      cfg,
		router:      r,
		appConfig:   appConfig,
		runner:      run,
		toolReg:     toolReg,
		providerReg: providerReg,
		mcpClient:   mcp.NewClient(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// InitializeMCP connects the MCP servers from configuration and registers
// their tools with the tool registry. Individual connection failures are
// logged, not fatal.
func (s *Server) InitializeMCP(ctx context.Context) error {
	if s.appConfig == nil || s.appConfig.MCP == nil {
		return nil
	}

	for name, cfg := range s.appConfig.MCP {
		enabled := cfg.Enabled == nil || *cfg.Enabled
		mcpCfg := &mcp.Config{
			Enabled:     enabled,
			Type:        mcp.TransportType(cfg.Type),
			URL:         cfg.URL,
			Headers:     cfg.Headers,
			Command:     cfg.Command,
			Environment: cfg.Environment,
			Timeout:     cfg.Timeout,
		}
		if err := s.mcpClient.AddServer(ctx, name, mcpCfg); err != nil {
			logging.Warn().Str("server", name).Err(err).Msg("MCP server connection failed")
			continue
		}
	}

	if s.toolReg != nil {
		for _, t := range tool.FromMCP(s.mcpClient) {
			s.toolReg.Register(t)
		}
	}

	return nil
}

// CloseMCP closes all MCP server connections.
func (s *Server) CloseMCP() error {
	if s.mcpClient != nil {
		return s.mcpClient.Close()
	}
	return nil
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Logging
	s.router.Use(middleware.Logger)

	// Recover from panics
	s.router.Use(middleware.Recoverer)

	// Real IP
	s.router.Use(middleware.RealIP)

	// CORS
	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID", StreamVersionHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
