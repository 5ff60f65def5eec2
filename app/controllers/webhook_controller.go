package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/ManuelReschke/PayFox/internal/pkg/lock"
	"github.com/ManuelReschke/PayFox/internal/pkg/payments"
	"github.com/ManuelReschke/PayFox/internal/pkg/stripe"
)

const lockNamespaceStripe = "stripe"

// LockHandle is a held per-event lock that must be released on every exit
// path.
type LockHandle interface {
	Release(ctx context.Context) error
}

// EventLocker acquires the per-event advisory lock.
type EventLocker interface {
	Acquire(ctx context.Context, eventID string) (LockHandle, error)
}

// WebhookProcessor is the ledger + executor surface the controller drives.
type WebhookProcessor interface {
	Claim(ctx context.Context, eventID, eventType, payloadHash string) (payments.ClaimOutcome, error)
	Process(ctx context.Context, ev *stripe.Event) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

// WebhookController ingests provider webhooks: verify, lock, claim, execute,
// finalize, release. Every failure below it maps to a response the provider
// recovers from by redelivering.
type WebhookController struct {
	sig    stripe.SignatureConfig
	locker EventLocker
	svc    WebhookProcessor
	now    func() time.Time
}

// NewWebhookController wires the controller from explicit collaborators.
func NewWebhookController(sig stripe.SignatureConfig, locker EventLocker, svc WebhookProcessor) *WebhookController {
	return &WebhookController{
		sig:    sig,
		locker: locker,
		svc:    svc,
		now:    time.Now,
	}
}

// NewWebhookControllerFromEnv builds the production wiring: secrets from env,
// Redis lock coordinator, GORM-backed payments service.
func NewWebhookControllerFromEnv() *WebhookController {
	sig := stripe.SignatureConfig{
		Secret:         env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		PreviousSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET_OLD", ""),
	}
	if raw := env.GetEnv("STRIPE_SECRET_OVERLAP_UNTIL", ""); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			sig.OverlapUntil = t
		} else {
			log.Warnf("[Webhook] Ignoring invalid STRIPE_SECRET_OVERLAP_UNTIL: %v", err)
		}
	}

	return NewWebhookController(
		sig,
		coordinatorLocker{c: lock.NewCoordinatorFromEnv(lockNamespaceStripe)},
		payments.NewServiceFromDB(database.GetDB()),
	)
}

// HandleStripeWebhook processes one delivery of a provider event.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	// The signature covers the exact bytes, so the body must stay raw.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	sigHeader := c.Get("Stripe-Signature")

	if err := wc.sig.VerifyWebhookSignature(rawBody, sigHeader, wc.now()); err != nil {
		log.Warnf("[Webhook] Rejected delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := stripe.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] Unparseable payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	handle, err := wc.locker.Acquire(ctx, ev.ID)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			log.Infof("[Webhook] Event %s is locked by a concurrent delivery", ev.ID)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "busy"})
		}
		log.Errorf("[Webhook] Lock acquire failed for %s: %v", ev.ID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "lock_unavailable"})
	}
	defer func() {
		// Release must not be skipped because the request context expired.
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		if err := handle.Release(releaseCtx); err != nil {
			log.Errorf("[Webhook] Lock release failed for %s: %v", ev.ID, err)
		}
	}()

	outcome, err := wc.svc.Claim(ctx, ev.ID, ev.Type, payments.PayloadHash(rawBody))
	if err != nil {
		log.Errorf("[Webhook] Claim failed for %s: %v", ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "claim_failed"})
	}

	switch outcome {
	case payments.ClaimAlreadyProcessed:
		// The common replay case: ack without touching anything.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case payments.ClaimAlreadyProcessing:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "in_flight"})
	}

	if err := wc.svc.Process(ctx, ev); err != nil {
		log.Errorf("[Webhook] Processing event %s (%s) failed: %v", ev.ID, ev.Type, err)
		if markErr := wc.svc.MarkFailed(ctx, ev.ID, err); markErr != nil {
			log.Errorf("[Webhook] Marking event %s failed errored: %v", ev.ID, markErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	log.Infof("[Webhook] Processed event %s (%s), outcome=%s", ev.ID, ev.Type, outcome)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// coordinatorLocker adapts the concrete Redis coordinator to EventLocker.
type coordinatorLocker struct {
	c *lock.Coordinator
}

func (l coordinatorLocker) Acquire(ctx context.Context, eventID string) (LockHandle, error) {
	h, err := l.c.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return h, nil
}
