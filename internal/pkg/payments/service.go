package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/stripe"
	"gorm.io/gorm"
)

// processingStaleAfter is the horizon after which a "processing" row is
// considered abandoned by a crashed holder. Must exceed the lock TTL so a
// live holder can never be mistaken for a dead one.
const processingStaleAfter = 60 * time.Second

// Service is the dedup ledger plus side-effect executor. The ledger row is
// the authoritative guard against double execution; the distributed lock in
// front of it only reduces duplicate work.
type Service struct {
	repo       Repository
	staleAfter time.Duration
}

// NewService creates a payments service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, staleAfter: processingStaleAfter}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// PayloadHash fingerprints the raw request bytes for the audit trail.
func PayloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Claim records the event in processing state, or classifies the existing
// record. Whichever delivery wins the unique-insert race owns processing;
// losers see AlreadyProcessing. A previously failed event is reopened so the
// redelivery can retry its side effects.
func (s *Service) Claim(ctx context.Context, eventID, eventType, payloadHash string) (ClaimOutcome, error) {
	_ = ctx
	if strings.TrimSpace(eventID) == "" {
		return ClaimAlreadyProcessing, errors.New("event id is required")
	}

	event := &models.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		PayloadHash: payloadHash,
		Status:      models.WebhookStatusProcessing,
	}
	created, stored, err := s.repo.CreateEventIfNotExists(event)
	if err != nil {
		return ClaimAlreadyProcessing, err
	}
	if created {
		return ClaimNew, nil
	}

	switch stored.Status {
	case models.WebhookStatusProcessed:
		return ClaimAlreadyProcessed, nil
	case models.WebhookStatusFailed:
		if err := s.repo.ReopenFailedEvent(eventID); err != nil {
			return ClaimAlreadyProcessing, err
		}
		return ClaimPreviouslyFailed, nil
	default:
		// Claim runs under the per-event lock, so a processing row this old
		// belongs to a holder that crashed before finalizing. Retry it; the
		// finalize guard keeps a double execution harmless regardless.
		if time.Since(stored.ReceivedAt) > s.staleAfter {
			return ClaimPreviouslyFailed, nil
		}
		return ClaimAlreadyProcessing, nil
	}
}

// Process executes the business writes for a claimed event and finalizes the
// ledger row to processed, atomically. Event types without a handler are
// acknowledged with no side effects.
func (s *Service) Process(ctx context.Context, ev *stripe.Event) error {
	_ = ctx
	fx, err := s.buildSideEffects(ev)
	if err != nil {
		return err
	}
	return s.repo.FinalizeProcessed(ev.ID, fx)
}

// MarkFailed transitions the ledger row to failed after a rolled-back
// execution, keeping the cause for operator visibility.
func (s *Service) MarkFailed(ctx context.Context, eventID string, cause error) error {
	_ = ctx
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.repo.MarkEventFailed(eventID, msg)
}

// GetEvent returns the ledger record for an event id.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	_ = ctx
	return s.repo.GetEvent(eventID)
}

func (s *Service) buildSideEffects(ev *stripe.Event) (SideEffects, error) {
	var fx SideEffects

	switch ev.Type {
	case stripe.EventCheckoutSessionCompleted:
		session, err := ev.CheckoutSession()
		if err != nil {
			return fx, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		fx.Payments = append(fx.Payments, models.Payment{
			SessionID:     session.ID,
			CustomerEmail: session.CustomerDetails.Email,
			Amount:        session.AmountTotal,
			Currency:      session.Currency,
			Status:        models.PaymentStatusSucceeded,
		})
	case stripe.EventPaymentIntentSucceeded:
		pi, err := ev.PaymentIntent()
		if err != nil {
			return fx, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		fx.PaymentIntents = append(fx.PaymentIntents, models.PaymentIntent{
			PiID:     pi.ID,
			Amount:   pi.AmountReceived,
			Currency: pi.Currency,
			Status:   models.PaymentStatusSucceeded,
		})
	}
	// Unhandled types are acked harmlessly with empty effects.

	return fx, nil
}

// RecordIdempotencyKey catalogs a key issued for an outbound call. Best
// effort: the key's determinism is what guarantees correctness.
func (s *Service) RecordIdempotencyKey(ctx context.Context, key, purpose, scope string, ttl time.Duration) error {
	_ = ctx
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}
	return s.repo.CreateIdempotencyKeyIfNotExists(&models.IdempotencyKeyRecord{
		Key:       key,
		Purpose:   purpose,
		Scope:     scope,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// PurgeExpiredIdempotencyKeys removes catalog rows past their expiry.
func (s *Service) PurgeExpiredIdempotencyKeys(ctx context.Context) (int64, error) {
	_ = ctx
	return s.repo.PurgeExpiredIdempotencyKeys(time.Now())
}
