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
	CaseHandler interface {
		Start(ctx *fiber.Ctx) error
		SendTurn(ctx *fiber.Ctx) error
		Skip(ctx *fiber.Ctx) error
		Resume(ctx *fiber.Ctx) error
	}

	caseHandler struct {
		validator *validate.Validator
		logger    *logrus.Logger
		usecase   usecase.CaseUsecase
	}
)

func NewCaseHandler(validator *validate.Validator, logger *logrus.Logger, usecase usecase.CaseUsecase) CaseHandler {
	return &caseHandler{
		validator: validator,
		logger:    logger,
		usecase:   usecase,
	}
}

// POST /cases
func (h *caseHandler) Start(ctx *fiber.Ctx) error {
	var req entity.StartCaseRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return response.NewFailed(domain.CASE_START_FAILED, err, h.logger).Send(ctx)
	}

	result, err := h.usecase.Start(ctx.UserContext(), middleware.UserID(ctx), req)
	if err != nil {
		return fail(ctx, domain.CASE_START_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.CASE_START_SUCCESS, result, nil).Send(ctx)
}

// POST /cases/:session_id/turns
func (h *caseHandler) SendTurn(ctx *fiber.Ctx) error {
	var req entity.SendTurnRequest
	if err := h.validator.ParseAndValidate(ctx, &req); err != nil {
		return response.NewFailed(domain.CASE_TURN_FAILED, err, h.logger).Send(ctx)
	}

	result, err := h.usecase.SendTurn(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"), req.Message)
	if err != nil {
		return fail(ctx, domain.CASE_TURN_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.CASE_TURN_SUCCESS, result, nil).Send(ctx)
}

// POST /cases/:session_id/skip
func (h *caseHandler) Skip(ctx *fiber.Ctx) error {
	result, err := h.usecase.Skip(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"))
	if err != nil {
		return fail(ctx, domain.CASE_SKIP_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.CASE_SKIP_SUCCESS, result, nil).Send(ctx)
}

// GET /cases/:session_id/resume
func (h *caseHandler) Resume(ctx *fiber.Ctx) error {
	result, err := h.usecase.Resume(ctx.UserContext(), middleware.UserID(ctx), ctx.Params("session_id"))
	if err != nil {
		return fail(ctx, domain.CASE_RESUME_FAILED, err, h.logger)
	}

	return response.NewSuccess(domain.CASE_RESUME_SUCCESS, result, nil).Send(ctx)
}
