package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.stripe.com"

// Client talks to the provider's REST API. Every creation call carries a
// deterministic Idempotency-Key so provider-side dedup absorbs retries.
type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

type CreateCheckoutSessionInput struct {
	OrderID     string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSessionResource is the provider's representation of a created
// checkout session.
type CheckoutSessionResource struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession creates (or, on retry, returns) the checkout session
// for an order. The idempotency key is derived from the order identity, so
// issuing this call any number of times yields the same remote resource.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CreateCheckoutSessionInput) (*CheckoutSessionResource, string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, "", errors.New("STRIPE_API_KEY is not configured")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, "", errors.New("order id is required")
	}
	if in.AmountCents <= 0 {
		return nil, "", errors.New("amount must be positive")
	}

	key := CheckoutSessionKey(in.OrderID, in.AmountCents, in.Currency)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("client_reference_id", in.OrderID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Order "+in.OrderID)

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("checkout session create failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out CheckoutSessionResource
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, "", errors.New("checkout session response missing id")
	}
	return &out, key, nil
}
