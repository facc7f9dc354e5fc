package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"

	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/payments"
	"github.com/codr1/leagueoffice/internal/validation"
)

// PaymentService is the part of payments.Service driven by webhooks.
type PaymentService interface {
	FindPayment(ctx context.Context, paymentID, externalID string) (dbgen.Payment, error)
	ApplyCharge(ctx context.Context, payment dbgen.Payment, charge *gateway.Charge) (dbgen.Payment, error)
	CompletePeer(ctx context.Context, payment dbgen.Payment, externalID string, paidCents int64) (dbgen.Payment, error)
	FailPayment(ctx context.Context, payment dbgen.Payment, externalID, reason string) (dbgen.Payment, error)
	RecordRefund(ctx context.Context, update payments.RefundUpdate) (bool, error)
}

type processor struct {
	payments PaymentService
}

// peerPayment is the data object of a peer-payment app event.
type peerPayment struct {
	PaymentID     string          `json:"paymentId"`
	ReferenceID   string          `json:"referenceId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

func (p *processor) handlePaymentUpdated(ctx context.Context, event Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	logger := log.Ctx(ctx).With().Str("external_payment_id", intent.ID).Logger()

	payment, err := p.payments.FindPayment(ctx, intent.Metadata[gateway.ReferenceMetadataKey], intent.ID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		logger.Warn().Msg("Webhook references an unknown payment")
		return nil
	}
	if err != nil {
		return err
	}

	updated, err := p.payments.ApplyCharge(ctx, payment, gateway.ChargeFromIntent(&intent))
	if err != nil {
		return err
	}
	logger.Info().
		Str("payment_id", updated.ID).
		Str("status", updated.Status).
		Str("gateway_status", string(intent.Status)).
		Msg("Payment updated from webhook")
	return nil
}

func (p *processor) handleRefundUpdated(ctx context.Context, event Event) error {
	var refund stripe.Refund
	if err := json.Unmarshal(event.Object, &refund); err != nil {
		return fmt.Errorf("decode refund: %w", err)
	}
	if refund.ID == "" {
		return fmt.Errorf("refund id is missing")
	}

	update := payments.RefundUpdate{
		ExternalRefundID: refund.ID,
		PaymentID:        refund.Metadata[gateway.ReferenceMetadataKey],
		AmountCents:      refund.Amount,
		Currency:         strings.ToUpper(string(refund.Currency)),
		Status:           mapRefundStatus(refund.Status),
		Reason:           string(refund.Reason),
	}
	if refund.PaymentIntent != nil {
		update.ExternalPaymentID = refund.PaymentIntent.ID
	}
	if refund.FailureReason != "" {
		update.Reason = string(refund.FailureReason)
	}

	changed, err := p.payments.RecordRefund(ctx, update)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Str("refund_id", refund.ID).
		Str("status", update.Status).
		Bool("changed", changed).
		Msg("Refund updated from webhook")
	return nil
}

func (p *processor) handlePeerCompleted(ctx context.Context, event Event) error {
	data, payment, err := p.peerPayment(ctx, event)
	if err != nil || payment.ID == "" {
		return err
	}
	paidCents := int64(0)
	if data.Amount.IsPositive() {
		paidCents = validation.AmountToCents(data.Amount)
	}
	updated, err := p.payments.CompletePeer(ctx, payment, data.TransactionID, paidCents)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("payment_id", updated.ID).Str("status", updated.Status).Msg("Peer payment completed")
	return nil
}

func (p *processor) handlePeerFailed(ctx context.Context, event Event) error {
	data, payment, err := p.peerPayment(ctx, event)
	if err != nil || payment.ID == "" {
		return err
	}
	updated, err := p.payments.FailPayment(ctx, payment, data.TransactionID, data.Reason)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("payment_id", updated.ID).Str("status", updated.Status).Msg("Peer payment failed")
	return nil
}

// peerPayment decodes a peer event and loads its payment. A zero payment with
// a nil error means the event is acknowledged without action.
func (p *processor) peerPayment(ctx context.Context, event Event) (peerPayment, dbgen.Payment, error) {
	logger := log.Ctx(ctx)
	var data peerPayment
	if err := json.Unmarshal(event.Object, &data); err != nil {
		return data, dbgen.Payment{}, fmt.Errorf("decode peer payment: %w", err)
	}

	paymentID := strings.TrimSpace(data.ReferenceID)
	if paymentID == "" {
		paymentID = strings.TrimSpace(data.PaymentID)
	}
	payment, err := p.payments.FindPayment(ctx, paymentID, strings.TrimSpace(data.TransactionID))
	if errors.Is(err, payments.ErrPaymentNotFound) {
		logger.Warn().Str("reference_id", paymentID).Msg("Peer event references an unknown payment")
		return data, dbgen.Payment{}, nil
	}
	if err != nil {
		return data, dbgen.Payment{}, err
	}
	if payment.Method != string(payments.MethodPeer) {
		logger.Warn().Str("payment_id", payment.ID).Str("method", payment.Method).Msg("Peer event for a non-peer payment ignored")
		return data, dbgen.Payment{}, nil
	}
	return data, payment, nil
}

func mapRefundStatus(status stripe.RefundStatus) string {
	switch status {
	case stripe.RefundStatusSucceeded:
		return payments.StatusCompleted
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return payments.StatusFailed
	default:
		return payments.StatusPending
	}
}
