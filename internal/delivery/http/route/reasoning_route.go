package route

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/handler"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
)

func SetupReasoningRoute(api fiber.Router, handler handler.ReasoningHandler, m *middleware.Middleware) {
	router := api.Group("/reasoning", m.Auth())
	{
		router.Post("/", handler.Start)
		router.Post("/:session_id/advance", handler.Advance)
		router.Post("/:session_id/feedback", handler.SubmitFeedback)
		router.Get("/:session_id/status", handler.Status)
	}
}
