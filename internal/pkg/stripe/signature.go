package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("stripe-signature header is required")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook signature timestamp outside tolerance")
)

// SignatureConfig holds the webhook signing secrets. PreviousSecret is only
// honored until OverlapUntil so a rotated-out secret stops working once the
// rotation window closes.
type SignatureConfig struct {
	Secret         string
	PreviousSecret string
	OverlapUntil   time.Time
	Tolerance      time.Duration
}

// VerifyWebhookSignature checks a Stripe-style signature header
// ("t=<unix>,v1=<hex>[,v1=<hex>...]") against the raw request body.
// The signed string is "<t>.<body>" and the digest is HMAC-SHA256.
func (c SignatureConfig) VerifyWebhookSignature(payload []byte, signatureHeader string, now time.Time) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(c.Secret) == "" {
		return ErrMissingSignature
	}

	ts, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	tolerance := c.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleTimestamp
	}

	signed := strconv.FormatInt(ts, 10) + "." + string(payload)
	for _, secret := range c.activeSecrets(now) {
		expected := computeSignature(signed, secret)
		for _, candidate := range candidates {
			if hmac.Equal(candidate, expected) {
				return nil
			}
		}
	}
	return ErrInvalidSignature
}

func (c SignatureConfig) activeSecrets(now time.Time) []string {
	secrets := []string{c.Secret}
	if prev := strings.TrimSpace(c.PreviousSecret); prev != "" && now.Before(c.OverlapUntil) {
		secrets = append(secrets, prev)
	}
	return secrets
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var ts int64
	var haveTS bool
	var candidates [][]byte

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			ts = parsed
			haveTS = true
		case "v1":
			decoded, err := hex.DecodeString(strings.ToLower(v))
			if err != nil {
				continue
			}
			candidates = append(candidates, decoded)
		}
	}

	if !haveTS || len(candidates) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return ts, candidates, nil
}

func computeSignature(signed, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return mac.Sum(nil)
}

// SignPayload produces a valid signature header for the given payload and
// secret. Used by tests and local tooling to emit well-formed deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	signed := strconv.FormatInt(ts, 10) + "." + string(payload)
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(computeSignature(signed, secret))
}
