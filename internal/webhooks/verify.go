package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

const (
	StripeSignatureHeader = "Stripe-Signature"
	PeerSignatureHeader   = "X-Peer-Signature"
)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC of payload and compares it with
// signature in constant time. A missing secret or signature never verifies.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// verifyStripe checks a Stripe-Signature header: timestamped v1 HMAC within
// tolerance.
func verifyStripe(payload []byte, header, secret string, tolerance time.Duration) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
