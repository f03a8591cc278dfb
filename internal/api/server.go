package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/campaign-targeting/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, rc RouteConfig) *Server {
	if len(rc.AllowedOrigins) == 0 {
		rc.AllowedOrigins = cfg.AllowedOrigins
	}
	handler := SetupRoutes(rc)
	return &Server{
		config:  cfg,
		handler: handler,
		server: &http.Server{
			Addr:    cfg.Addr(),
			Handler: handler,
			// A fleet trigger runs synchronously and can take several minutes.
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      15 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
