package controller

import (
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/service"
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
)

type IHistoryController interface {
	RegisterRoutes(r fiber.Router)
	Page(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Detail(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type historyController struct {
	service service.IHistoryService
	logger  logger.ILogger
}

func NewHistoryController(service service.IHistoryService, log logger.ILogger) IHistoryController {
	return &historyController{service: service, logger: log}
}

func (c *historyController) RegisterRoutes(r fiber.Router) {
	r.Get("/app/history", c.Page)

	h := r.Group("/app/api/history")
	h.Get("", c.List)
	h.Get("/:id", c.Detail)
	h.Delete("/:id", c.Delete)
}

func (c *historyController) Page(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	page, err := c.service.First(ctx.UserContext(), state)
	if err != nil {
		if expired(err) {
			return err
		}
		c.logger.Warn("HistoryController", "First page failed", map[string]interface{}{
			"session_id": state.ID,
			"error":      err.Error(),
		})
		return render(ctx, "history", "Historia", view.PageData{Error: apiMessage(err), Data: page})
	}
	return render(ctx, "history", "Historia", view.PageData{Data: page})
}

// List returns the first page, or with ?page=next appends the next one.
func (c *historyController) List(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}

	load := c.service.First
	if ctx.Query("page") == "next" {
		load = c.service.More
	}
	page, err := load(ctx.UserContext(), state)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list history", page))
}

func (c *historyController) Detail(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Detail(ctx.UserContext(), state, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show query", res))
}

func (c *historyController) Delete(ctx *fiber.Ctx) error {
	state, err := serverutils.MustSession(ctx)
	if err != nil {
		return err
	}
	if err := c.service.Delete(ctx.UserContext(), state, ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Query deleted", nil))
}
