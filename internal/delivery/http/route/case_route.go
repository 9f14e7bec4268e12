package route

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/handler"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
)

func SetupCaseRoute(api fiber.Router, handler handler.CaseHandler, m *middleware.Middleware) {
	router := api.Group("/cases", m.Auth())
	{
		router.Post("/", handler.Start)
		router.Post("/:session_id/turns", handler.SendTurn)
		router.Post("/:session_id/skip", handler.Skip)
		router.Get("/:session_id/resume", handler.Resume)
	}
}
