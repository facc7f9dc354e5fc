// Package gateway wraps the third-party card processor used to charge
// registration and roster fees.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Status is the normalized gateway status of a charge.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// ReferenceMetadataKey is the processor metadata key carrying our payment id.
const ReferenceMetadataKey = "reference_id"

// ErrGatewayUnavailable wraps network and processor-side failures. Its message
// is safe to show to payers.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ChargeRequest describes a single card charge.
type ChargeRequest struct {
	SourceID       string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	Metadata       map[string]string
}

// Charge is the gateway's view of a payment.
type Charge struct {
	ID             string
	Status         Status
	RawStatus      string
	AmountCents    int64
	Currency       string
	ReceiptURL     string
	CardBrand      string
	CardLast4      string
	FailureMessage string
}

// DeclineError is returned when the processor refuses the card. Message is
// the processor's payer-facing explanation.
type DeclineError struct {
	Code    string
	Message string
	Charge  *Charge
}

func (e *DeclineError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment declined: %s", e.Message)
	}
	return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Message)
}

// Gateway creates and looks up charges.
type Gateway interface {
	CreatePayment(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPayment(ctx context.Context, externalID string) (*Charge, error)
}
