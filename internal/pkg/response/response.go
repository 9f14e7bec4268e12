package response

import (
	"errors"

	"github.com/evandrarf/neurocase-be/internal/pkg/validate"
	"github.com/gofiber/fiber/v2"

	"github.com/sirupsen/logrus"
)

type Response struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      any    `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
	Meta       any    `json:"meta,omitempty"`
}

func NewInternalServerError() *Response {
	res := &Response{
		Success:    false,
		Message:    "Internal Server Error",
		StatusCode: fiber.StatusInternalServerError,
	}
	return res
}

func NewFailed(msg string, err error, logger *logrus.Logger) *Response {
	res := &Response{
		Success:    false,
		Message:    msg,
		StatusCode: fiber.StatusInternalServerError,
	}

	var fe *fiber.Error
	var fields *validate.FieldsError
	if errors.As(err, &fe) {
		res.StatusCode = fe.Code
		if fe.Message != "" {
			res.Error = fe.Message
		}
	} else if errors.As(err, &fields) {
		res.StatusCode = fiber.StatusBadRequest
		res.Error = fields.Fields
	}

	if logger != nil && res.StatusCode >= fiber.StatusInternalServerError {
		logger.Error(err)
	}

	return res
}

// NewFailedDetail is a failed response whose error is structured, e.g. a list
// of validation issues.
func NewFailedDetail(msg string, code int, detail any) *Response {
	return &Response{
		Success:    false,
		Message:    msg,
		StatusCode: code,
		Error:      detail,
	}
}

func NewSuccess(msg string, data any, meta any) *Response {
	res := &Response{
		Success:    true,
		Message:    msg,
		StatusCode: fiber.StatusOK,
		Data:       data,
		Meta:       meta,
	}

	return res
}

func (r *Response) Send(ctx *fiber.Ctx) error {
	return ctx.Status(r.StatusCode).JSON(r)
}
