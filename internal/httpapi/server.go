// Package httpapi serves the account, project and render endpoints over
// chi. Error bodies are {code, message}; sessions ride as bearer tokens.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/metrics"
)

// Server bundles the API's dependencies.
type Server struct {
	accounts  *accounts.Service
	projects  *projects.Service
	limiter   *RateLimiter
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// NewServer creates the API server.
func NewServer(
	accountsSvc *accounts.Service,
	projectsSvc *projects.Service,
	limiter *RateLimiter,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		accounts:  accountsSvc,
		projects:  projectsSvc,
		limiter:   limiter,
		collector: collector,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(s.signupLimit).Post("/signup", s.handleSignUp)
		r.Post("/signin", s.handleSignIn)
		r.Get("/session", s.handleSession)
		r.Post("/signout", s.handleSignOut)
	})

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.generalLimit)

		r.Put("/api/profile/key", s.handleUpdateKey)

		r.Route("/api/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Delete("/", s.handleDeleteProject)
				r.Post("/messages", s.handleAppendMessage)
				r.Put("/artifact", s.handleSetArtifact)
			})
		})

		r.Post("/api/render", s.handleRender)
	})

	return r
}
