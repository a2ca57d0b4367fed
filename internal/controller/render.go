package controller

import (
	"errors"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/view"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// render fills the fields every page shares and hands the binding to the
// view engine.
func render(ctx *fiber.Ctx, name, title string, data view.PageData) error {
	data.Title = title
	if state, ok := serverutils.CurrentSession(ctx); ok {
		user := state.User()
		data.User = &user
	}
	return ctx.Render(name, data)
}

// formFailure renders a form page again with the error explained. Field
// errors come from the validator; anything else is a page-level message.
func formFailure(ctx *fiber.Ctx, name, title string, err error, data view.PageData) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		data.FieldErrors = serverutils.FieldErrors(verrs)
		data.Error = dto.MessageFor(dto.ErrValidation)
		ctx.Status(fiber.StatusUnprocessableEntity)
		return render(ctx, name, title, data)
	}
	data.Error = authprovider.Message(err)
	ctx.Status(authStatus(err))
	return render(ctx, name, title, data)
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, authprovider.ErrInvalidCredentials), errors.Is(err, authprovider.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, authprovider.ErrTooManyAttempts):
		return fiber.StatusTooManyRequests
	case errors.Is(err, authprovider.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusBadRequest
}

func expired(err error) bool {
	return errors.Is(err, gateway.ErrSessionExpired)
}

// apiMessage is the user-facing text for a backend failure.
func apiMessage(err error) string {
	return dto.MessageFor(gateway.ErrorCodeOf(err))
}
