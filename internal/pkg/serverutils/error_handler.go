package serverutils

import (
	"errors"

	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/version"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatus maps a sentinel error to an HTTP status.
type ErrorStatus struct {
	Err    error
	Status int
}

var defaultStatuses = []ErrorStatus{
	{version.ErrVersionNotFound, fiber.StatusNotFound},
	{curation.ErrFragmentNotFound, fiber.StatusNotFound},
	{curation.ErrCategoryNotFound, fiber.StatusNotFound},
	{backend.ErrSessionExists, fiber.StatusConflict},
	{session.ErrEditInProgress, fiber.StatusConflict},
	{session.ErrInvalidTransition, fiber.StatusConflict},
	{session.ErrNoPendingQuestion, fiber.StatusConflict},
	{curation.ErrDuplicateFragment, fiber.StatusConflict},
	{curation.ErrInvalidFragment, fiber.StatusBadRequest},
}

// ErrorHandlerMiddleware renders errors returned by later handlers as
// ErrorResponse bodies. extra mappings are checked before the defaults.
func ErrorHandlerMiddleware(extra ...ErrorStatus) fiber.Handler {
	statuses := append(append([]ErrorStatus(nil), extra...), defaultStatuses...)

	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponseWithData(fiber.StatusBadRequest, "invalid request", validationErr.Fields))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		var transportErr *backend.TransportError
		if errors.As(err, &transportErr) {
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(fiber.StatusBadGateway, err.Error()))
		}

		for _, s := range statuses {
			if errors.Is(err, s.Err) {
				return ctx.Status(s.Status).JSON(ErrorResponse(s.Status, err.Error()))
			}
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
	}
}
