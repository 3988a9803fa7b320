package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Unknown routes still get the JSON error envelope
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "Method not allowed")
	})

	// Health check
	r.Get("/health", s.health)

	// Versioned API
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.streamChat) // Streaming response

		// Catalog
		r.Get("/tools", s.listTools)
		r.Get("/models", s.listModels)

		// MCP status
		r.Get("/mcp", s.getMCPStatus)
	})
}
