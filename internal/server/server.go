package server

import (
	"log"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"ai-docreview-be/internal/bootstrap"
	"ai-docreview-be/internal/config"
	"ai-docreview-be/internal/pkg/serverutils"
	"ai-docreview-be/internal/websocket"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: (cfg.App.MaxFileSizeMB + 1) * 1024 * 1024,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

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
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{
			"active_sessions": c.TaskRegistry.Count(),
		}))
	})

	api := app.Group("/api")

	c.AnalysisController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api)
	c.SessionController.RegisterRoutes(api)

	// Live progress feed. Watchers connect per session id.
	api.Use("/progress/v1/:id", func(ctx *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/progress/v1/:id", fiberws.New(func(conn *fiberws.Conn) {
		sessionId, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			conn.Close()
			return
		}
		websocket.ServeWs(c.ProgressHub, conn, sessionId)
	}))
}
