package handler

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/domain"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/evandrarf/neurocase-be/internal/pkg/jobqueue"
	"github.com/evandrarf/neurocase-be/internal/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type (
	JobHandler interface {
		Status(ctx *fiber.Ctx) error
	}

	jobHandler struct {
		logger *logrus.Logger
		queue  jobqueue.Queue
	}
)

func NewJobHandler(logger *logrus.Logger, queue jobqueue.Queue) JobHandler {
	return &jobHandler{
		logger: logger,
		queue:  queue,
	}
}

// GET /jobs/:job_id
func (h *jobHandler) Status(ctx *fiber.Ctx) error {
	status, err := h.queue.Status(ctx.UserContext(), ctx.Params("job_id"), middleware.UserID(ctx))
	if err != nil {
		return fail(ctx, domain.JOB_STATUS_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.JOB_STATUS_SUCCESS, status, nil).Send(ctx)
}
