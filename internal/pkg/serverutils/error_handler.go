package serverutils

import (
	"errors"

	"prawnik-web/internal/contextcache"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/history"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/rating"
	"prawnik-web/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by later handlers.
// onSessionExpired runs before the user is sent to /login.
func ErrorHandlerMiddleware(log logger.ILogger, onSessionExpired func(*fiber.Ctx)) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return HandleError(ctx, err, log, onSessionExpired)
	}
}

func HandleError(ctx *fiber.Ctx, err error, log logger.ILogger, onSessionExpired func(*fiber.Ctx)) error {
	var validationErrs validator.ValidationErrors
	var apiErr *gateway.APIError
	var fiberErr *fiber.Error

	switch {
	case errors.Is(err, gateway.ErrSessionExpired):
		if onSessionExpired != nil {
			onSessionExpired(ctx)
		}
		if !WantsJSON(ctx) {
			return ctx.Redirect("/login", fiber.StatusFound)
		}
		resp := coded(fiber.StatusUnauthorized, dto.ErrSessionExpired, nil)
		resp.Redirect = "/login"
		return ctx.Status(fiber.StatusUnauthorized).JSON(resp)

	case errors.As(err, &validationErrs):
		return ctx.Status(fiber.StatusUnprocessableEntity).
			JSON(coded(fiber.StatusUnprocessableEntity, dto.ErrValidation, FieldErrors(validationErrs)))

	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status == 0 {
			status = fiber.StatusServiceUnavailable
		}
		var details map[string]interface{}
		if apiErr.RequestID != "" {
			details = map[string]interface{}{"request_id": apiErr.RequestID}
		}
		return ctx.Status(status).JSON(coded(status, apiErr.Code, details))

	case errors.Is(err, session.ErrTooManyActiveQueries):
		return ctx.Status(fiber.StatusTooManyRequests).
			JSON(coded(fiber.StatusTooManyRequests, dto.ErrTooManyActive, nil))

	case errors.Is(err, contextcache.ErrContextExpired):
		return ctx.Status(fiber.StatusConflict).JSON(coded(fiber.StatusConflict, dto.ErrContextExpired, nil))

	case errors.Is(err, rating.ErrSubmissionInFlight):
		return ctx.Status(fiber.StatusConflict).JSON(coded(fiber.StatusConflict, dto.ErrRatingInFlight, nil))

	case errors.Is(err, history.ErrNoMorePages):
		return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, "Brak kolejnych zapytań."))

	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	if log != nil {
		log.Error("ErrorHandler", "Unhandled error", map[string]interface{}{
			"path":   ctx.Path(),
			"method": ctx.Method(),
			"error":  err,
		})
	}
	return ctx.Status(fiber.StatusInternalServerError).
		JSON(coded(fiber.StatusInternalServerError, dto.ErrInternal, nil))
}

func coded(status int, code dto.ErrorCode, details map[string]interface{}) BaseResponse[any] {
	return CodedErrorResponse(status, code, dto.MessageFor(code), details)
}
