package server

import (
	"context"
	"log/slog"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps holds what NewRouter needs. Engine is required.
type Deps struct {
	Engine *goSession.Engine
	Logger *slog.Logger

	// Throttle, when set, limits requests per client on /api/auth.
	Throttle *middleware.Throttle
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
	// Ready backs /healthz. Nil means always healthy.
	Ready func(ctx context.Context) error

	CORSOrigins []string
}

// NewRouter builds the HTTP handler.
//
// Middleware order: Recoverer → ClientContext → Logging → CORS →
// LoadSession. The auth routes add the per-client throttle.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{engine: deps.Engine, logger: logger, ready: deps.Ready}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientContext)
	r.Use(middleware.Logging(logger))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(deps.Engine, logger))

		r.Get("/login", h.loginPage)
		r.Method(http.MethodGet, "/protected", h.protectedPage())

		r.Route("/api/auth", func(r chi.Router) {
			if deps.Throttle != nil {
				r.Use(deps.Throttle.Middleware)
			}
			r.Post("/callback/credentials", h.credentials)
			r.Get("/signin/{provider}", h.oauthSignIn)
			r.Get("/callback/{provider}", h.oauthCallback)
			r.Get("/session", h.session)
			r.Get("/providers", h.providers)
			r.Post("/signout", h.signOut)
		})
	})

	return r
}
