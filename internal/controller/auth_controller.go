// FILE: internal/controller/auth_controller.go
package controller

import (
	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/service"
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	LoginPage(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	RegisterPage(ctx *fiber.Ctx) error
	Register(ctx *fiber.Ctx) error
	ForgotPasswordPage(ctx *fiber.Ctx) error
	ForgotPassword(ctx *fiber.Ctx) error
	ResetPasswordPage(ctx *fiber.Ctx) error
	ResetPassword(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
	cookie  serverutils.CookieConfig
}

func NewAuthController(service service.IAuthService, cookie serverutils.CookieConfig) IAuthController {
	return &authController{service: service, cookie: cookie}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	r.Get("/login", c.LoginPage)
	r.Post("/login", c.Login)
	r.Get("/register", c.RegisterPage)
	r.Post("/register", c.Register)
	r.Get("/forgot-password", c.ForgotPasswordPage)
	r.Post("/forgot-password", c.ForgotPassword)
	r.Get("/reset-password", c.ResetPasswordPage)
	r.Post("/reset-password", c.ResetPassword)
	r.Post("/logout", c.Logout)
}

var loginFlashes = map[string]string{
	"passwordReset": "Hasło zostało zmienione. Zaloguj się nowym hasłem.",
	"deleted":       "Konto zostało usunięte.",
	"expired":       "Sesja wygasła. Zaloguj się ponownie.",
}

func (c *authController) LoginPage(ctx *fiber.Ctx) error {
	data := view.PageData{}
	for param, msg := range loginFlashes {
		if ctx.Query(param) == "true" {
			data.Flash = msg
		}
	}
	return render(ctx, "login", "Logowanie", data)
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	data := view.PageData{Form: map[string]string{"email": req.Email}}

	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "login", "Logowanie", err, data)
	}

	state, err := c.service.Login(ctx.UserContext(), &req)
	if err != nil {
		return formFailure(ctx, "login", "Logowanie", err, data)
	}
	if err := serverutils.SetSessionCookie(ctx, c.cookie, state.ID); err != nil {
		return err
	}
	return ctx.Redirect("/app", fiber.StatusSeeOther)
}

func (c *authController) RegisterPage(ctx *fiber.Ctx) error {
	return render(ctx, "register", "Rejestracja", view.PageData{})
}

// Register signs the user straight in when the provider returns a session;
// otherwise the page asks them to confirm their e-mail first.
func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	data := view.PageData{Form: map[string]string{"email": req.Email}}

	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "register", "Rejestracja", err, data)
	}

	state, err := c.service.Register(ctx.UserContext(), &req)
	if err != nil {
		return formFailure(ctx, "register", "Rejestracja", err, data)
	}
	if state == nil {
		data.Data = req.Email
		return render(ctx, "register", "Rejestracja", data)
	}
	if err := serverutils.SetSessionCookie(ctx, c.cookie, state.ID); err != nil {
		return err
	}
	return ctx.Redirect("/app?firstLogin=true", fiber.StatusSeeOther)
}

func (c *authController) ForgotPasswordPage(ctx *fiber.Ctx) error {
	return render(ctx, "forgot_password", "Reset hasła", view.PageData{})
}

func (c *authController) ForgotPassword(ctx *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	data := view.PageData{Form: map[string]string{"email": req.Email}}

	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "forgot_password", "Reset hasła", err, data)
	}
	if err := c.service.ForgotPassword(ctx.UserContext(), &req); err != nil {
		return formFailure(ctx, "forgot_password", "Reset hasła", err, data)
	}
	data.Data = true
	return render(ctx, "forgot_password", "Reset hasła", data)
}

func (c *authController) ResetPasswordPage(ctx *fiber.Ctx) error {
	token := ctx.Query("token_hash")
	if token == "" {
		token = ctx.Query("token")
	}
	return render(ctx, "reset_password", "Nowe hasło", view.PageData{
		Form: map[string]string{"token_hash": token},
	})
}

func (c *authController) ResetPassword(ctx *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	data := view.PageData{Form: map[string]string{"token_hash": req.TokenHash}}

	if err := serverutils.ValidateRequest(req); err != nil {
		return formFailure(ctx, "reset_password", "Nowe hasło", err, data)
	}
	if err := c.service.ResetPassword(ctx.UserContext(), &req); err != nil {
		return formFailure(ctx, "reset_password", "Nowe hasło", err, data)
	}
	return ctx.Redirect("/login?passwordReset=true", fiber.StatusSeeOther)
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	if state, ok := serverutils.CurrentSession(ctx); ok {
		c.service.Logout(ctx.UserContext(), state)
	}
	serverutils.ClearSessionCookie(ctx, c.cookie)
	return ctx.Redirect("/login", fiber.StatusSeeOther)
}
