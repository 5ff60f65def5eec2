package router

import (
	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	checkout := controllers.NewCheckoutControllerFromEnv()
	v1.Post("/checkout-sessions", checkout.HandleCreateCheckoutSession)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
