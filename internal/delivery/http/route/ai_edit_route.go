package route

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/handler"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
)

func SetupAIEditRoute(api fiber.Router, handler handler.AIEditHandler, m *middleware.Middleware) {
	router := api.Group("/mcqs/:mcq_id/ai-edit", m.Auth())
	{
		router.Post("/stem", handler.EditStem)
		router.Post("/missing-options", handler.FillMissingOptions)
		router.Post("/all-options", handler.ImproveAllOptions)
	}
}

func SetupJobRoute(api fiber.Router, handler handler.JobHandler, m *middleware.Middleware) {
	api.Get("/jobs/:job_id", m.Auth(), handler.Status)
}
