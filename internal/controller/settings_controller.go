package controller

import (
	"errors"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/service"
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
)

type ISettingsController interface {
	RegisterRoutes(r fiber.Router)
	Page(ctx *fiber.Ctx) error
	ChangePassword(ctx *fiber.Ctx) error
	DeleteAccount(ctx *fiber.Ctx) error
}

type settingsController struct {
	service service.ISettingsService
	cookie  serverutils.CookieConfig
}

func NewSettingsController(service service.ISettingsService, cookie serverutils.CookieConfig) ISettingsController {
	return &settingsController{service: service, cookie: cookie}
}

func (c *settingsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/app/settings")
	h.Get("", c.Page)
	h.Post("/password", c.ChangePassword)
	h.Post("/delete", c.DeleteAccount)
}

func (c *settingsController) Page(ctx *fiber.Ctx) error {
	data := view.PageData{}
	if ctx.Query("passwordChanged") == "true" {
		data.Flash = "Hasło zostało zmienione."
	}
	return render(ctx, "settings", "Ustawienia", data)
}

func (c *settingsController) ChangePassword(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	var req dto.ChangePasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "settings", "Ustawienia", err, view.PageData{})
	}

	err = c.service.ChangePassword(ctx.UserContext(), state, &req)
	switch {
	case err == nil:
		return ctx.Redirect("/app/settings?passwordChanged=true", fiber.StatusSeeOther)
	case errors.Is(err, service.ErrCurrentPasswordInvalid):
		ctx.Status(fiber.StatusUnprocessableEntity)
		return render(ctx, "settings", "Ustawienia", view.PageData{
			FieldErrors: map[string]interface{}{"current_password": "Obecne hasło jest nieprawidłowe."},
		})
	case expired(err):
		return err
	}
	return formFailure(ctx, "settings", "Ustawienia", err, view.PageData{})
}

func (c *settingsController) DeleteAccount(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	var req dto.DeleteAccountRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "settings", "Ustawienia", err, view.PageData{})
	}

	if err := c.service.DeleteAccount(ctx.UserContext(), state); err != nil {
		if expired(err) {
			return err
		}
		msg := apiMessage(err)
		if errors.Is(err, authprovider.ErrUnavailable) {
			msg = authprovider.Message(err)
		}
		ctx.Status(fiber.StatusBadGateway)
		return render(ctx, "settings", "Ustawienia", view.PageData{Error: msg})
	}
	serverutils.ClearSessionCookie(ctx, c.cookie)
	return ctx.Redirect("/login?deleted=true", fiber.StatusSeeOther)
}
