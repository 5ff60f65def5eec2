package payments

import (
	"errors"

	"github.com/ManuelReschke/PayFox/app/models"
)

// ClaimOutcome classifies what the dedup ledger knows about an event id at
// claim time.
type ClaimOutcome int

const (
	// ClaimNew means this delivery won the insert race and owns processing.
	ClaimNew ClaimOutcome = iota
	// ClaimAlreadyProcessed means side effects committed earlier; replay is a
	// no-op success.
	ClaimAlreadyProcessed
	// ClaimAlreadyProcessing means another delivery is in flight right now.
	ClaimAlreadyProcessing
	// ClaimPreviouslyFailed means an earlier attempt errored; side effects may
	// be retried.
	ClaimPreviouslyFailed
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimNew:
		return "new"
	case ClaimAlreadyProcessed:
		return "already_processed"
	case ClaimAlreadyProcessing:
		return "already_processing"
	case ClaimPreviouslyFailed:
		return "previously_failed"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformedPayload marks events whose payload cannot be decoded for
	// their declared type. The event is finalized "failed".
	ErrMalformedPayload = errors.New("malformed event payload")
	// ErrEventNotProcessing signals a finalize attempt on a row that is not in
	// the processing state. The surrounding transaction rolls back.
	ErrEventNotProcessing = errors.New("event is not in processing state")
)

// SideEffects is the full set of business writes one event produces. Every
// row is inserted if absent, so applying the same effects twice is harmless.
type SideEffects struct {
	Payments       []models.Payment
	PaymentIntents []models.PaymentIntent
}

func (fx SideEffects) Empty() bool {
	return len(fx.Payments) == 0 && len(fx.PaymentIntents) == 0
}
