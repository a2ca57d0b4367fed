package controller

import (
	"strings"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/service"
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
)

// ChatPage is the binding of the chat page.
type ChatPage struct {
	Examples   []dto.ExampleQuestion
	Active     dto.ActiveQueriesState
	RateLimit  dto.RateLimitState
	FirstLogin bool
}

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Page(ctx *fiber.Ctx) error
	Submit(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	RequestAccurate(ctx *fiber.Ctx) error
	Rate(ctx *fiber.Ctx) error
	RateLimit(ctx *fiber.Ctx) error
	ActiveQueries(ctx *fiber.Ctx) error
	Examples(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	logger  logger.ILogger
}

func NewChatController(service service.IChatService, log logger.ILogger) IChatController {
	return &chatController{service: service, logger: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Get("/app", c.Page)

	h := r.Group("/app/api")
	h.Post("/queries", c.Submit)
	h.Get("/queries/:id", c.Show)
	h.Post("/queries/:id/retry", c.Retry)
	h.Post("/queries/:id/accurate", c.RequestAccurate)
	h.Post("/queries/:id/ratings", c.Rate)
	h.Get("/rate-limit", c.RateLimit)
	h.Get("/active-queries", c.ActiveQueries)
	h.Get("/examples", c.Examples)
}

func (c *chatController) Page(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	page := ChatPage{
		Active:     c.service.ActiveQueries(state),
		RateLimit:  c.service.RateLimit(state),
		FirstLogin: ctx.Query("firstLogin") == "true",
	}
	// the chat works without examples
	examples, err := c.service.Examples(ctx.UserContext())
	if err != nil {
		c.logger.Warn("ChatController", "Example questions unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		page.Examples = examples
	}
	return render(ctx, "chat", "Czat", view.PageData{Data: page})
}

func (c *chatController) Submit(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	var req dto.QuerySubmitRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	req.QueryText = strings.TrimSpace(req.QueryText)
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Submit(ctx.UserContext(), state, &req)
	if err != nil {
		return err
	}
	resp := serverutils.SuccessResponse("Query accepted", res)
	resp.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(resp)
}

func (c *chatController) Show(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.View(ctx.UserContext(), state, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show query", res))
}

func (c *chatController) Retry(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.RetryFast(ctx.UserContext(), state, ctx.Params("id"))
	if err != nil {
		return err
	}
	resp := serverutils.SuccessResponse("Fast response polled again", res)
	resp.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(resp)
}

func (c *chatController) RequestAccurate(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.RequestAccurate(ctx.UserContext(), state, ctx.Params("id"))
	if err != nil {
		return err
	}
	resp := serverutils.SuccessResponse("Accurate response requested", res)
	resp.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(resp)
}

func (c *chatController) Rate(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	var req dto.RatingUpdate
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Rate(ctx.UserContext(), state, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Rating saved", res))
}

func (c *chatController) RateLimit(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show rate limit", c.service.RateLimit(state)))
}

func (c *chatController) ActiveQueries(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show active queries", c.service.ActiveQueries(state)))
}

func (c *chatController) Examples(ctx *fiber.Ctx) error {
	res, err := c.service.Examples(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show examples", res))
}
