package controller

import (
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
)

type IPageController interface {
	RegisterRoutes(r fiber.Router)
	Landing(ctx *fiber.Ctx) error
	KitchenSink(ctx *fiber.Ctx) error
}

type pageController struct{}

func NewPageController() IPageController {
	return &pageController{}
}

func (c *pageController) RegisterRoutes(r fiber.Router) {
	r.Get("/", c.Landing)
	r.Get("/kitchen-sink", c.KitchenSink)
}

func (c *pageController) Landing(ctx *fiber.Ctx) error {
	return render(ctx, "landing", "", view.PageData{})
}

func (c *pageController) KitchenSink(ctx *fiber.Ctx) error {
	return render(ctx, "kitchen_sink", "Komponenty", view.PageData{})
}
