package handler

import (
	"errors"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/usecase"
	"github.com/evandrarf/neurocase-be/internal/pkg/aiedit"
	"github.com/evandrarf/neurocase-be/internal/pkg/jobqueue"
	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	notFoundDetail    = "not found"
	unavailableDetail = "The AI service is temporarily unavailable. Please try again."
)

// fail maps usecase errors to a response. Backend details are logged and
// never sent to the client.
func fail(ctx *fiber.Ctx, msg string, err error, log *logrus.Logger) error {
	var (
		exhausted *aiedit.ValidationExhaustedError
		transient *llm.TransientBackendError
		malformed *llm.MalformedOutputError
		empty     *llm.EmptyOutputError
	)

	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrMCQNotFound),
		errors.Is(err, jobqueue.ErrJobNotFound):
		return response.NewFailed(msg, fiber.NewError(fiber.StatusNotFound, notFoundDetail), log).Send(ctx)

	case errors.As(err, &exhausted):
		log.WithField("job", exhausted.Job).WithField("issues", exhausted.Issues).Warn("ai edit validation exhausted")
		return response.NewFailedDetail(msg, fiber.StatusUnprocessableEntity, exhausted.Issues).Send(ctx)

	case errors.Is(err, aiedit.ErrPolicyRejected):
		log.WithError(err).Warn("ai edit rejected by content policy")
		return response.NewFailed(msg, fiber.NewError(fiber.StatusUnprocessableEntity, aiedit.ErrPolicyRejected.Error()), log).Send(ctx)

	case errors.Is(err, usecase.ErrEditInProgress),
		errors.Is(err, usecase.ErrConversionInProgress):
		return response.NewFailed(msg, fiber.NewError(fiber.StatusConflict, err.Error()), log).Send(ctx)

	case errors.Is(err, usecase.ErrEmptyMessage),
		errors.Is(err, usecase.ErrReasoningTooShort),
		errors.Is(err, usecase.ErrInvalidFeedback),
		errors.Is(err, usecase.ErrGuidanceNotAvailable),
		errors.Is(err, usecase.ErrNothingToFill):
		return response.NewFailed(msg, fiber.NewError(fiber.StatusBadRequest, err.Error()), log).Send(ctx)

	case errors.Is(err, usecase.ErrTutorUnavailable),
		errors.Is(err, usecase.ErrGenerationFailed),
		errors.As(err, &transient),
		errors.As(err, &malformed),
		errors.As(err, &empty):
		log.WithError(err).Error("generation backend unavailable")
		return response.NewFailed(msg, fiber.NewError(fiber.StatusServiceUnavailable, unavailableDetail), nil).Send(ctx)

	case errors.Is(err, usecase.ErrAnalysisFailed):
		log.WithError(err).Error("reasoning analysis failed")
		return response.NewFailed(msg, fiber.NewError(fiber.StatusInternalServerError, usecase.ErrAnalysisFailed.Error()), nil).Send(ctx)
	}

	return response.NewFailed(msg, err, log).Send(ctx)
}
