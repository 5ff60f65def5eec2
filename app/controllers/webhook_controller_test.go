package controllers

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/internal/pkg/lock"
	"github.com/ManuelReschke/PayFox/internal/pkg/payments"
	"github.com/ManuelReschke/PayFox/internal/pkg/stripe"
)

const testWebhookSecret = "whsec_test"

type fakeHandle struct {
	released *bool
}

func (h fakeHandle) Release(ctx context.Context) error {
	*h.released = true
	return nil
}

type fakeLocker struct {
	err      error
	acquired int
	released bool
}

func (l *fakeLocker) Acquire(ctx context.Context, eventID string) (LockHandle, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return fakeHandle{released: &l.released}, nil
}

type fakeProcessor struct {
	claimOutcome payments.ClaimOutcome
	claimErr     error
	processErr   error

	claims    int
	processed int
	failed    []string
}

func (p *fakeProcessor) Claim(ctx context.Context, eventID, eventType, payloadHash string) (payments.ClaimOutcome, error) {
	p.claims++
	return p.claimOutcome, p.claimErr
}

func (p *fakeProcessor) Process(ctx context.Context, ev *stripe.Event) error {
	if p.processErr != nil {
		return p.processErr
	}
	p.processed++
	return nil
}

func (p *fakeProcessor) MarkFailed(ctx context.Context, eventID string, cause error) error {
	p.failed = append(p.failed, eventID)
	return nil
}

func newWebhookTestApp(locker EventLocker, svc WebhookProcessor) *fiber.App {
	wc := NewWebhookController(stripe.SignatureConfig{Secret: testWebhookSecret}, locker, svc)
	app := fiber.New()
	app.Post("/webhooks/stripe", wc.HandleStripeWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sigHeader string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func validPayload() []byte {
	return []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": { "object": { "id": "cs_1", "amount_total": 1000, "currency": "usd" } }
	}`)
}

func TestWebhookHappyPath(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, svc.claims)
	assert.Equal(t, 1, svc.processed)
	assert.True(t, locker.released, "lock must be released after success")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()

	// Tampered signature.
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, "whsec_wrong", time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Missing header.
	status = postWebhook(t, app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Stale timestamp with an otherwise correct signature.
	status = postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now().Add(-10*time.Minute)))
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.Zero(t, locker.acquired, "no lock may be taken for rejected deliveries")
	assert.Zero(t, svc.claims, "no state may change for rejected deliveries")
}

func TestWebhookRejectsUnparseablePayload(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew}
	app := newWebhookTestApp(locker, svc)

	payload := []byte(`{"type":"checkout.session.completed"}`) // missing event id
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Zero(t, svc.claims)
}

func TestWebhookBusyLock(t *testing.T) {
	locker := &fakeLocker{err: lock.ErrBusy}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Zero(t, svc.claims, "busy deliveries must not touch the ledger")
}

func TestWebhookLockServiceUnavailable(t *testing.T) {
	locker := &fakeLocker{err: errors.New("connection refused")}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Zero(t, svc.claims)
}

func TestWebhookDuplicateAck(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimAlreadyProcessed}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Zero(t, svc.processed, "replays must be side-effect free")
	assert.True(t, locker.released)
}

func TestWebhookInFlightDuplicate(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimAlreadyProcessing}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Zero(t, svc.processed)
	assert.True(t, locker.released)
}

func TestWebhookExecutorFailure(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimNew, processErr: errors.New("db down")}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	require.Len(t, svc.failed, 1)
	assert.Equal(t, "evt_1", svc.failed[0])
	assert.True(t, locker.released, "lock must be released on the failure path too")
}

func TestWebhookPreviouslyFailedRetries(t *testing.T) {
	locker := &fakeLocker{}
	svc := &fakeProcessor{claimOutcome: payments.ClaimPreviouslyFailed}
	app := newWebhookTestApp(locker, svc)

	payload := validPayload()
	status := postWebhook(t, app, payload, stripe.SignPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, svc.processed, "previously failed events are retried")
	assert.True(t, locker.released)
}
