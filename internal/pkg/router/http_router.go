package router

import (
	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// Provider webhooks (no auth middleware; signature-verified in controller
	// over the exact raw bytes)
	webhooks := controllers.NewWebhookControllerFromEnv()
	app.Post("/webhooks/stripe", webhooks.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
