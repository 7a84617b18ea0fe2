package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/thisux/shortlink/internal/app/service"
	"github.com/thisux/shortlink/internal/http/handler"
	"github.com/thisux/shortlink/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Logger    *zap.Logger
	Redis     *redis.Client
	Links     service.LinkService
	Redirects service.RedirectService
	Analytics service.AnalyticsService

	BaseURL      string
	JWTSecret    []byte
	ExposeErrors bool
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app, used by handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())

	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	redirectHandler := handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:    s.deps.Logger,
		Redirects: s.deps.Redirects,
	})
	redirectHandler.Register(s.app)

	apiHandler := handler.NewAPIHandler(handler.APIDeps{
		Logger:       s.deps.Logger,
		Links:        s.deps.Links,
		Redirects:    s.deps.Redirects,
		Analytics:    s.deps.Analytics,
		BaseURL:      s.deps.BaseURL,
		ExposeErrors: s.deps.ExposeErrors,
	})
	apiHandler.Register(s.app, middleware.Auth(s.deps.JWTSecret))
}
