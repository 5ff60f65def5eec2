package stripe

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// IdempotencyKey derives a deterministic key from a purpose and the
// materially distinguishing parts of a logical operation. The same logical
// request always yields the same key, across retries and process restarts,
// so the provider collapses repeated creation calls into one resource.
func IdempotencyKey(purpose string, parts ...string) string {
	raw := strings.Join(append([]string{purpose}, parts...), "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CheckoutSessionKey is the key for creating a checkout session for an order.
// Amount and currency are part of the identity: changing either is a new
// logical operation, not a retry.
func CheckoutSessionKey(orderID string, amountCents int64, currency string) string {
	return IdempotencyKey("checkout.session", orderID, strconv.FormatInt(amountCents, 10), strings.ToLower(currency))
}
