package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/campaign-targeting/internal/pkg/httputil"
)

// RouteConfig carries everything SetupRoutes mounts.
type RouteConfig struct {
	Handlers       *Handlers
	Health         *HealthChecker
	Hooks          http.Handler // mounted at /hooks when set
	AllowedOrigins []string
}

// SetupRoutes configures all routes.
func SetupRoutes(rc RouteConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rc.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.MethodNotAllowed(w)
	})

	if rc.Health != nil {
		r.Get("/health", rc.Health.HandleHealth)
		r.Get("/health/live", rc.Health.HandleLiveness)
		r.Get("/health/ready", rc.Health.HandleReadiness)
	}

	if rc.Handlers != nil {
		r.Route("/triggers", func(r chi.Router) {
			r.Post("/all", rc.Handlers.TriggerAll)
			r.Post("/{campaignType}", rc.Handlers.TriggerCampaign)
		})
	}

	if rc.Hooks != nil {
		r.Mount("/hooks", rc.Hooks)
	}

	return r
}
