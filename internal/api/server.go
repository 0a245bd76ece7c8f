// Package api serves the dashboard, categorization and provider operations
// over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/dashboard"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Deps are the services behind the handlers.
type Deps struct {
	Dashboard *dashboard.Service
	Resolver  *category.Resolver
	Syncer    *syncer.Coordinator
	Linker    *syncer.Linker
	Seeder    *syncer.Seeder
}

// Options tunes the server.
type Options struct {
	// RateLimit is the sustained request rate across all clients.
	RateLimit rate.Limit
	// Burst is the number of requests allowed above RateLimit at once.
	Burst int
}

// DefaultOptions returns the default server options.
func DefaultOptions() Options {
	return Options{
		RateLimit: rate.Every(100 * time.Millisecond),
		Burst:     30,
	}
}

// Server routes HTTP requests to the services.
type Server struct {
	deps    Deps
	router  chi.Router
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewServer builds the router.
func NewServer(deps Deps, opts Options) *Server {
	if opts.RateLimit == 0 {
		opts = DefaultOptions()
	}
	s := &Server{
		deps:    deps,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		logger:  slog.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/overrides", s.handleOverride)
		r.Get("/rules", s.handleListRules)
		r.Post("/rules", s.handleCreateRule)

		r.Route("/plaid", func(r chi.Router) {
			r.Post("/sync", s.handleSync)
			r.Post("/link-token", s.handleLinkToken)
			r.Post("/exchange", s.handleExchange)
			r.Post("/seed", s.handleSeed)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
