package server

import (
	"context"

	"prawnik-web/internal/bootstrap"
	"prawnik-web/internal/config"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/view"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	onSessionExpired := func(ctx *fiber.Ctx) {
		if state, ok := serverutils.CurrentSession(ctx); ok {
			container.AuthService.Expire(state.ID)
		}
		serverutils.ClearSessionCookie(ctx, container.Cookie)
	}

	// Initialize Fiber App
	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		Views:                 view.New(),
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			return serverutils.HandleError(ctx, err, container.Logger, onSessionExpired)
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(ctx *fiber.Ctx) bool {
		return ctx.Path() == "/metrics" || ctx.Path() == "/healthz"
	})))

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger, onSessionExpired))

	// Static
	app.Use("/static", view.Static())

	// Ops endpoints sit in front of the session layer
	container.OpsController.RegisterRoutes(app)

	app.Use(serverutils.SessionMiddleware(container.Cookie, container.Sessions))
	app.Use(serverutils.RedirectRules())

	// Routes
	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Server is running", map[string]interface{}{
		"url": "http://localhost:" + s.cfg.App.Port,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	c.PageController.RegisterRoutes(app)
	c.AuthController.RegisterRoutes(app)

	c.ChatController.RegisterRoutes(app)
	c.HistoryController.RegisterRoutes(app)
	c.SettingsController.RegisterRoutes(app)

	c.RealtimeHandler.RegisterRoutes(app)
}
