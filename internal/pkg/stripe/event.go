package stripe

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
)

// Event is the provider webhook envelope. Data.Object stays raw until the
// event type is known.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type CheckoutSession struct {
	ID              string `json:"id"`
	AmountTotal     int64  `json:"amount_total"`
	Currency        string `json:"currency"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type PaymentIntent struct {
	ID             string `json:"id"`
	AmountReceived int64  `json:"amount_received"`
	Currency       string `json:"currency"`
}

// ParseEvent decodes the webhook envelope and validates the fields every
// delivery must carry.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.ID) == "" {
		return nil, errors.New("webhook event payload missing id")
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("webhook event payload missing type")
	}
	return &ev, nil
}

// CheckoutSession decodes data.object for checkout.session.* events.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var cs CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &cs); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cs.ID) == "" {
		return nil, errors.New("checkout session object missing id")
	}
	return &cs, nil
}

// PaymentIntent decodes data.object for payment_intent.* events.
func (e *Event) PaymentIntent() (*PaymentIntent, error) {
	var pi PaymentIntent
	if err := json.Unmarshal(e.Data.Object, &pi); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pi.ID) == "" {
		return nil, errors.New("payment intent object missing id")
	}
	return &pi, nil
}
