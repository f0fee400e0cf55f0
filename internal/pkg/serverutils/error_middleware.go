package serverutils

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"ai-docreview-be/internal/pkg/apperrors"
)

// ErrorHandlerMiddleware maps domain errors to HTTP responses so the
// controllers can just return them. Rate-limit errors become 429 with a
// Retry-After header; AppErrors carry their own status code; anything else
// is a 500 with a generic message.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var rateLimitErr *apperrors.RateLimitError
		if errors.As(err, &rateLimitErr) {
			ctx.Set("Retry-After", strconv.Itoa(rateLimitErr.RetryAfterSeconds))
			return ctx.Status(fiber.StatusTooManyRequests).
				JSON(ErrorResponse(fiber.StatusTooManyRequests, "Service is busy, please retry shortly"))
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return ctx.Status(appErr.StatusCode).
				JSON(ErrorResponse(appErr.StatusCode, appErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).
				JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
