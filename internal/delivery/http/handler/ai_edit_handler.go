package handler

import (
	"github.com/evandrarf/neurocase-be/internal/delivery/http/domain"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/usecase"
	"github.com/evandrarf/neurocase-be/internal/pkg/response"
	"github.com/evandrarf/neurocase-be/internal/pkg/validate"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type (
	AIEditHandler interface {
		EditStem(ctx *fiber.Ctx) error
		FillMissingOptions(ctx *fiber.Ctx) error
		ImproveAllOptions(ctx *fiber.Ctx) error
	}

	aiEditHandler struct {
		validator *validate.Validator
		logger    *logrus.Logger
		usecase   usecase.AIEditUsecase
	}
)

func NewAIEditHandler(validator *validate.Validator, logger *logrus.Logger, usecase usecase.AIEditUsecase) AIEditHandler {
	return &aiEditHandler{
		validator: validator,
		logger:    logger,
		usecase:   usecase,
	}
}

type editFunc func(h *aiEditHandler, ctx *fiber.Ctx, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error)

// POST /mcqs/:mcq_id/ai-edit/stem
func (h *aiEditHandler) EditStem(ctx *fiber.Ctx) error {
	return h.handle(ctx, func(h *aiEditHandler, ctx *fiber.Ctx, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
		return h.usecase.EditStem(ctx.UserContext(), middleware.UserID(ctx), mcqID, req)
	})
}

// POST /mcqs/:mcq_id/ai-edit/missing-options
func (h *aiEditHandler) FillMissingOptions(ctx *fiber.Ctx) error {
	return h.handle(ctx, func(h *aiEditHandler, ctx *fiber.Ctx, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
		return h.usecase.FillMissingOptions(ctx.UserContext(), middleware.UserID(ctx), mcqID, req)
	})
}

// POST /mcqs/:mcq_id/ai-edit/all-options
func (h *aiEditHandler) ImproveAllOptions(ctx *fiber.Ctx) error {
	return h.handle(ctx, func(h *aiEditHandler, ctx *fiber.Ctx, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
		return h.usecase.ImproveAllOptions(ctx.UserContext(), middleware.UserID(ctx), mcqID, req)
	})
}

func (h *aiEditHandler) handle(ctx *fiber.Ctx, edit editFunc) error {
	mcqID, err := ctx.ParamsInt("mcq_id")
	if err != nil || mcqID <= 0 {
		return response.NewFailed(domain.AI_EDIT_FAILED, fiber.NewError(fiber.StatusBadRequest, "mcq_id is not valid"), h.logger).Send(ctx)
	}

	var req entity.AIEditRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return response.NewFailed(domain.AI_EDIT_FAILED, err, h.logger).Send(ctx)
	}

	result, err := edit(h, ctx, uint(mcqID), req)
	if err != nil {
		return fail(ctx, domain.AI_EDIT_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.AI_EDIT_SUCCESS, result, nil).Send(ctx)
}
