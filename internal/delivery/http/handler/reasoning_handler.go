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
	ReasoningHandler interface {
		Start(ctx *fiber.Ctx) error
		Advance(ctx *fiber.Ctx) error
		SubmitFeedback(ctx *fiber.Ctx) error
		Status(ctx *fiber.Ctx) error
	}

	reasoningHandler struct {
		validator *validate.Validator
		logger    *logrus.Logger
		usecase   usecase.ReasoningUsecase
	}
)

func NewReasoningHandler(validator *validate.Validator, logger *logrus.Logger, usecase usecase.ReasoningUsecase) ReasoningHandler {
	return &reasoningHandler{
		validator: validator,
		logger:    logger,
		usecase:   usecase,
	}
}

// POST /reasoning
func (h *reasoningHandler) Start(ctx *fiber.Ctx) error {
	var req entity.StartReasoningRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return response.NewFailed(domain.REASONING_START_FAILED, err, h.logger).Send(ctx)
	}

	result, err := h.usecase.Start(ctx.UserContext(), middleware.UserID(ctx), req)
	if err != nil {
		return fail(ctx, domain.REASONING_START_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.REASONING_START_SUCCESS, result, nil).Send(ctx)
}

// POST /reasoning/:session_id/advance
func (h *reasoningHandler) Advance(ctx *fiber.Ctx) error {
	result, err := h.usecase.Advance(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"))
	if err != nil {
		return fail(ctx, domain.REASONING_ADVANCE_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.REASONING_ADVANCE_SUCCESS, result, nil).Send(ctx)
}

// POST /reasoning/:session_id/feedback
func (h *reasoningHandler) SubmitFeedback(ctx *fiber.Ctx) error {
	var req entity.ReasoningFeedbackRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return response.NewFailed(domain.REASONING_FEEDBACK_FAILED, err, h.logger).Send(ctx)
	}

	if err := h.usecase.SubmitFeedback(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"), req); err != nil {
		return fail(ctx, domain.REASONING_FEEDBACK_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.REASONING_FEEDBACK_SUCCESS, fiber.Map{"success": true}, nil).Send(ctx)
}

// GET /reasoning/:session_id/status
func (h *reasoningHandler) Status(ctx *fiber.Ctx) error {
	result, err := h.usecase.Status(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"))
	if err != nil {
		return fail(ctx, domain.REASONING_STATUS_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.REASONING_STATUS_SUCCESS, result, nil).Send(ctx)
}
