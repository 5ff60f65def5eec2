package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/payments"
	"github.com/ManuelReschke/PayFox/internal/pkg/stripe"
)

const idempotencyKeyTTL = 24 * time.Hour

// CheckoutClient issues the outbound provider call with a deterministic
// idempotency key attached.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, in stripe.CreateCheckoutSessionInput) (*stripe.CheckoutSessionResource, string, error)
}

// KeyRecorder catalogs issued idempotency keys for observability.
type KeyRecorder interface {
	RecordIdempotencyKey(ctx context.Context, key, purpose, scope string, ttl time.Duration) error
}

// CheckoutController creates provider checkout sessions for internal orders.
// Retrying the same order produces the same idempotency key, so the provider
// returns the original session instead of creating a duplicate.
type CheckoutController struct {
	client   CheckoutClient
	keys     KeyRecorder
	validate *validator.Validate
}

type CreateCheckoutRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	SuccessURL  string `json:"success_url" validate:"required,url"`
	CancelURL   string `json:"cancel_url" validate:"required,url"`
}

// NewCheckoutController wires the controller from explicit collaborators.
func NewCheckoutController(client CheckoutClient, keys KeyRecorder) *CheckoutController {
	return &CheckoutController{
		client:   client,
		keys:     keys,
		validate: validator.New(),
	}
}

// NewCheckoutControllerFromEnv builds the production wiring.
func NewCheckoutControllerFromEnv() *CheckoutController {
	return NewCheckoutController(
		stripe.NewClientFromEnv(),
		payments.NewServiceFromDB(database.GetDB()),
	)
}

// HandleCreateCheckoutSession handles POST /api/v1/checkout-sessions.
func (cc *CheckoutController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req CreateCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := cc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "detail": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, key, err := cc.client.CreateCheckoutSession(ctx, stripe.CreateCheckoutSessionInput{
		OrderID:     req.OrderID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		log.Errorf("[Checkout] Session create failed for order %s: %v", req.OrderID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_call_failed"})
	}

	// Catalog entry is best effort; the key's determinism carries correctness.
	if err := cc.keys.RecordIdempotencyKey(ctx, key, "checkout.session", req.OrderID, idempotencyKeyTTL); err != nil {
		log.Warnf("[Checkout] Could not catalog idempotency key for order %s: %v", req.OrderID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id":      session.ID,
		"url":             session.URL,
		"idempotency_key": key,
	})
}
