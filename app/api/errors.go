package api

import (
	"errors"

	"dms/pkg/log"
	"dms/types"

	"github.com/gofiber/fiber/v2"
)

// Error is the JSON error body for non-validation failures.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

// ErrorHandler maps the error taxonomy onto HTTP responses: validation
// failures are 422, an exhausted provider chain is 502 with the list of
// attempted models, fiber's own errors keep their status and everything
// else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr types.ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var exhausted *types.ProviderExhaustedError
	if errors.As(err, &exhausted) {
		log.Errorw("answer generation failed", "models", exhausted.Models(), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":            "answer generation failed: all models exhausted",
			"attempted_models": exhausted.Models(),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	log.Errorw("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(
		NewError(fiber.StatusInternalServerError, "internal server error"))
}
