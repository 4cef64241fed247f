package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-gateway/internal/config"
	"go-auth-gateway/internal/handler"
	"go-auth-gateway/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
	Docs   *handler.DocsHandler
}

func New(
	cfg *config.Config,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	authMiddleware *middleware.AuthMiddleware,
	handlers Handlers,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", handlers.Health.Check)
	r.Get("/openapi.yaml", handlers.Docs.OpenAPI)
	r.Get("/swagger", handlers.Docs.SwaggerUI)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", handlers.Auth.Login)
		auth.Post("/register", handlers.Auth.Register)
		auth.With(authMiddleware.RequireAuth).Get("/verify", handlers.Auth.Verify)
		auth.Post("/logout", handlers.Auth.Logout)
	})

	return r
}
