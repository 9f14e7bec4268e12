package route

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/handler"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteConfig struct {
	Api              *fiber.App
	Middleware       *middleware.Middleware
	CaseHandler      handler.CaseHandler
	ReasoningHandler handler.ReasoningHandler
	AIEditHandler    handler.AIEditHandler
	JobHandler       handler.JobHandler
}

func Setup(c *RouteConfig) {
	c.Api.Use(recover.New())
	c.Api.Use(logger.New(logger.Config{
		Format: "[${ip}]:${port} ${status} - ${method} ${path}\n",
	}))
	c.Api.Use(c.Middleware.CorsMiddleware())

	c.Api.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupCaseRoute(c.Api, c.CaseHandler, c.Middleware)
	SetupReasoningRoute(c.Api, c.ReasoningHandler, c.Middleware)
	SetupAIEditRoute(c.Api, c.AIEditHandler, c.Middleware)
	SetupJobRoute(c.Api, c.JobHandler, c.Middleware)
}
