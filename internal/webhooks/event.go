package webhooks

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
)

const (
	ProviderStripe = "stripe"
	ProviderPeer   = "peer"
)

// Kind is the provider-independent event category used for dispatch.
type Kind string

const (
	KindPaymentUpdated Kind = "payment.updated"
	KindRefundUpdated  Kind = "refund.updated"
	KindPeerCompleted  Kind = "peer.payment.completed"
	KindPeerFailed     Kind = "peer.payment.failed"
	KindUnknown        Kind = ""
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is a verified webhook delivery. Object holds the provider's payload
// for the affected resource.
type Event struct {
	Provider string
	ID       string
	Type     string
	Kind     Kind
	Object   json.RawMessage
}

// Source verifies and decodes deliveries from one provider.
type Source interface {
	Provider() string
	SignatureHeader() string
	Verify(payload []byte, signature string) error
	Parse(payload []byte) (Event, error)
}

var stripeKinds = map[stripe.EventType]Kind{
	"payment_intent.succeeded":      KindPaymentUpdated,
	"payment_intent.payment_failed": KindPaymentUpdated,
	"payment_intent.canceled":       KindPaymentUpdated,
	"payment_intent.processing":     KindPaymentUpdated,
	"refund.created":                KindRefundUpdated,
	"refund.updated":                KindRefundUpdated,
	"refund.failed":                 KindRefundUpdated,
	"charge.refund.updated":         KindRefundUpdated,
}

type StripeSource struct {
	secret    string
	tolerance time.Duration
}

func NewStripeSource(secret string, tolerance time.Duration) *StripeSource {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeSource{secret: secret, tolerance: tolerance}
}

func (s *StripeSource) Provider() string        { return ProviderStripe }
func (s *StripeSource) SignatureHeader() string { return StripeSignatureHeader }

func (s *StripeSource) Verify(payload []byte, signature string) error {
	return verifyStripe(payload, signature, s.secret, s.tolerance)
}

// Parse decodes a Stripe event. The API version of the payload is not
// checked; only the object fields used here are read.
func (s *StripeSource) Parse(payload []byte) (Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Type == "" {
		return Event{}, fmt.Errorf("%w: type is required", ErrMalformedEvent)
	}
	event := Event{
		Provider: ProviderStripe,
		ID:       eventID(evt.ID, payload),
		Type:     string(evt.Type),
		Kind:     stripeKinds[evt.Type],
	}
	if evt.Data != nil {
		event.Object = evt.Data.Raw
	}
	return event, nil
}

// eventID returns the provider's id, or a digest of the verified payload
// when the provider sent none. Redeliveries of the same body share it.
func eventID(id string, payload []byte) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// peerEnvelope is the peer-payment app's delivery format. The entity sits
// under data.object; older deliveries put it directly in data.
type peerEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e peerEnvelope) object() json.RawMessage {
	var wrapped struct {
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(e.Data, &wrapped); err == nil && len(wrapped.Object) > 0 && !bytes.Equal(wrapped.Object, []byte("null")) {
		return wrapped.Object
	}
	return e.Data
}

var peerKinds = map[string]Kind{
	"payment.completed": KindPeerCompleted,
	"payment.failed":    KindPeerFailed,
}

type PeerSource struct {
	secret string
}

func NewPeerSource(secret string) *PeerSource {
	return &PeerSource{secret: secret}
}

func (s *PeerSource) Provider() string        { return ProviderPeer }
func (s *PeerSource) SignatureHeader() string { return PeerSignatureHeader }

func (s *PeerSource) Verify(payload []byte, signature string) error {
	if !VerifySignature(payload, signature, s.secret) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *PeerSource) Parse(payload []byte) (Event, error) {
	var env peerEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: type is required", ErrMalformedEvent)
	}
	return Event{
		Provider: ProviderPeer,
		ID:       eventID(env.ID, payload),
		Type:     env.Type,
		Kind:     peerKinds[strings.ToLower(env.Type)],
		Object:   env.object(),
	}, nil
}
