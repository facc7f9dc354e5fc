// Package payments owns the payment record lifecycle: intents, card
// submissions, gateway reconciliation and the transitions driven by webhooks.
package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/codr1/leagueoffice/internal/db"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/email"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/validation"
)

type Method string

const (
	MethodCard Method = "card_processor"
	MethodPeer Method = "peer_app"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
	ErrIdempotencyConflict = errors.New("idempotency key belongs to a different payment")
	ErrPaymentClosed       = errors.New("payment has already failed; start a new payment")
	ErrWrongMethod         = errors.New("payment cannot be paid by card")
)

// Fulfiller applies the domain effect of a completed payment.
type Fulfiller interface {
	Process(ctx context.Context, payment dbgen.Payment) (fulfillment.Result, error)
}

type Options struct {
	Currency   string
	LeagueName string
	Receipts   email.EmailSender
}

type Service struct {
	db         *db.DB
	gateway    gateway.Gateway
	fulfiller  Fulfiller
	receipts   email.EmailSender
	currency   string
	leagueName string
	now        func() time.Time
}

func NewService(database *db.DB, gw gateway.Gateway, fulfiller Fulfiller, opts Options) *Service {
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		db:         database,
		gateway:    gw,
		fulfiller:  fulfiller,
		receipts:   opts.Receipts,
		currency:   currency,
		leagueName: opts.LeagueName,
		now:        time.Now,
	}
}

// IntentParams describes a payment the payer is about to make.
type IntentParams struct {
	Amount         decimal.Decimal
	Currency       string
	Method         Method
	PayerID        string
	PayerEmail     string
	Note           string
	ReferenceID    string
	Metadata       map[string]any
	PaymentDetails map[string]any
}

// CreateIntent stores a pending payment with a fresh idempotency key. The
// key is returned to the client and reused for every submission of this
// payment.
func (s *Service) CreateIntent(ctx context.Context, params IntentParams) (dbgen.Payment, error) {
	return s.CreateIntentTx(ctx, s.db, params)
}

// CreateIntentTx is CreateIntent inside the caller's transaction.
func (s *Service) CreateIntentTx(ctx context.Context, tx *db.DB, params IntentParams) (dbgen.Payment, error) {
	if !validation.ValidatePaymentAmount(params.Amount) {
		return dbgen.Payment{}, ErrInvalidAmount
	}
	method := params.Method
	if method == "" {
		method = MethodCard
	}
	if method != MethodCard && method != MethodPeer {
		return dbgen.Payment{}, fmt.Errorf("unsupported payment method: %s", method)
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = s.currency
	}

	metadata, err := encodeObject(params.Metadata)
	if err != nil {
		return dbgen.Payment{}, err
	}
	details, err := encodeObject(params.PaymentDetails)
	if err != nil {
		return dbgen.Payment{}, err
	}

	payment, err := tx.Queries.CreatePayment(ctx, dbgen.CreatePaymentParams{
		ID:             uuid.NewString(),
		AmountCents:    validation.AmountToCents(params.Amount),
		Currency:       currency,
		Method:         string(method),
		IdempotencyKey: uuid.NewString(),
		PayerID:        nullString(params.PayerID),
		PayerEmail:     nullString(params.PayerEmail),
		Note:           nullString(params.Note),
		ReferenceID:    nullString(params.ReferenceID),
		Metadata:       metadata,
		PaymentDetails: details,
	})
	if err != nil {
		return dbgen.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("payment_id", payment.ID).
		Str("method", payment.Method).
		Int64("amount_cents", payment.AmountCents).
		Msg("Payment intent created")
	return payment, nil
}

// SubmitParams is a card submission for a payment.
type SubmitParams struct {
	SourceID       string
	Amount         decimal.Decimal
	IdempotencyKey string
	Note           string
	ReferenceID    string
	PayerID        string
	PayerEmail     string
}

// SubmitResult is the payment after the gateway call. Charge is nil when the
// gateway was not called because the payment had already completed.
type SubmitResult struct {
	Payment dbgen.Payment
	Charge  *gateway.Charge
}

// Submit charges a card for a payment. When the idempotency key names an
// existing payment that record is reused; a completed one is returned without
// calling the gateway. Otherwise a pending record is created under the key, or
// under a generated key when none was given.
//
// Declines mark the payment failed and return *gateway.DeclineError. Gateway
// outages leave the payment pending so it can be resubmitted with the same
// key, and return gateway.ErrGatewayUnavailable.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (SubmitResult, error) {
	if !validation.ValidatePaymentAmount(params.Amount) {
		return SubmitResult{}, ErrInvalidAmount
	}
	amountCents := validation.AmountToCents(params.Amount)

	payment, err := s.paymentForSubmission(ctx, params, amountCents)
	if err != nil {
		return SubmitResult{}, err
	}
	if payment.Status == StatusCompleted {
		return SubmitResult{Payment: payment}, nil
	}

	logger := log.Ctx(ctx).With().Str("payment_id", payment.ID).Logger()
	charge, err := s.gateway.CreatePayment(ctx, gateway.ChargeRequest{
		SourceID:       params.SourceID,
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		IdempotencyKey: payment.IdempotencyKey,
		Note:           payment.Note.String,
		ReferenceID:    payment.ID,
	})
	if err != nil {
		var decline *gateway.DeclineError
		if errors.As(err, &decline) {
			externalID := ""
			if decline.Charge != nil {
				externalID = decline.Charge.ID
			}
			failed, failErr := s.fail(ctx, payment.ID, externalID, decline.Message)
			if failErr != nil {
				return SubmitResult{}, failErr
			}
			logger.Info().Str("decline_code", decline.Code).Msg("Card declined")
			return SubmitResult{Payment: failed, Charge: decline.Charge}, err
		}
		logger.Error().Err(err).Msg("Gateway charge failed")
		return SubmitResult{Payment: payment}, err
	}

	updated, err := s.ApplyCharge(ctx, payment, charge)
	if err != nil && updated.Status != StatusCompleted {
		return SubmitResult{}, err
	}
	if err != nil {
		// The charge went through; fulfillment is retried by the scheduler.
		logger.Error().Err(err).Msg("Fulfillment after card payment failed")
	}
	return SubmitResult{Payment: updated, Charge: charge}, nil
}

func (s *Service) paymentForSubmission(ctx context.Context, params SubmitParams, amountCents int64) (dbgen.Payment, error) {
	key := strings.TrimSpace(params.IdempotencyKey)
	if key != "" {
		existing, err := s.db.Queries.GetPaymentByIdempotencyKey(ctx, key)
		switch {
		case err == nil:
			return checkReusable(existing, params, amountCents)
		case !errors.Is(err, sql.ErrNoRows):
			return dbgen.Payment{}, fmt.Errorf("load payment by idempotency key: %w", err)
		}
	} else {
		key = uuid.NewString()
	}

	payment, err := s.db.Queries.CreatePayment(ctx, dbgen.CreatePaymentParams{
		ID:             uuid.NewString(),
		AmountCents:    amountCents,
		Currency:       s.currency,
		Method:         string(MethodCard),
		IdempotencyKey: key,
		PayerID:        nullString(params.PayerID),
		PayerEmail:     nullString(params.PayerEmail),
		Note:           nullString(params.Note),
		ReferenceID:    nullString(params.ReferenceID),
		Metadata:       "{}",
		PaymentDetails: "{}",
	})
	if err != nil {
		return dbgen.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

func checkReusable(payment dbgen.Payment, params SubmitParams, amountCents int64) (dbgen.Payment, error) {
	if payment.AmountCents != amountCents {
		return payment, fmt.Errorf("%w: amount differs", ErrIdempotencyConflict)
	}
	if payment.PayerID.Valid && params.PayerID != "" && payment.PayerID.String != params.PayerID {
		return payment, fmt.Errorf("%w: payer differs", ErrIdempotencyConflict)
	}
	if payment.Method != string(MethodCard) {
		return payment, ErrWrongMethod
	}
	if payment.Status == StatusFailed {
		return payment, ErrPaymentClosed
	}
	return payment, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, paymentID string) (dbgen.Payment, error) {
	payment, err := s.db.Queries.GetPayment(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return payment, ErrPaymentNotFound
	}
	if err != nil {
		return payment, fmt.Errorf("load payment: %w", err)
	}
	return payment, nil
}

// Receipt returns gateway-side details for a payment, if any were stored.
func (s *Service) Receipt(ctx context.Context, paymentID string) (dbgen.PaymentMetadatum, bool) {
	meta, err := s.db.Queries.GetPaymentMetadata(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Ctx(ctx).Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load payment metadata")
		}
		return meta, false
	}
	return meta, true
}

// Verify returns a payment, first refreshing it from the gateway when it is
// a card payment still pending with a known external id.
func (s *Service) Verify(ctx context.Context, paymentID string) (dbgen.Payment, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return payment, err
	}
	if payment.Status != StatusPending || payment.Method != string(MethodCard) || !payment.ExternalPaymentID.Valid {
		return payment, nil
	}

	charge, err := s.gateway.GetPayment(ctx, payment.ExternalPaymentID.String)
	if err != nil {
		return payment, err
	}
	updated, err := s.ApplyCharge(ctx, payment, charge)
	if err != nil && updated.Status != StatusCompleted {
		return payment, err
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("payment_id", payment.ID).Msg("Fulfillment after verification failed")
	}
	return updated, nil
}

// ApplyCharge moves a payment to the state reported by the gateway. A
// completed charge for less than the payment's amount fails it. The
// returned error may come from fulfillment after the payment completed; in
// that case the returned payment is completed.
func (s *Service) ApplyCharge(ctx context.Context, payment dbgen.Payment, charge *gateway.Charge) (dbgen.Payment, error) {
	if charge == nil {
		return payment, fmt.Errorf("charge is required")
	}
	if err := s.db.Queries.UpsertPaymentMetadata(ctx, dbgen.UpsertPaymentMetadataParams{
		PaymentID:     payment.ID,
		ReceiptUrl:    nullString(charge.ReceiptURL),
		GatewayStatus: nullString(charge.RawStatus),
		CardBrand:     nullString(charge.CardBrand),
		CardLast4:     nullString(charge.CardLast4),
	}); err != nil {
		return payment, fmt.Errorf("store payment metadata: %w", err)
	}

	switch charge.Status {
	case gateway.StatusCompleted:
		if charge.AmountCents > 0 && charge.AmountCents < payment.AmountCents {
			log.Ctx(ctx).Warn().
				Str("payment_id", payment.ID).
				Int64("expected_cents", payment.AmountCents).
				Int64("charged_cents", charge.AmountCents).
				Msg("Gateway charged less than payment amount")
			return s.fail(ctx, payment.ID, charge.ID, underpaid(charge.AmountCents, payment.AmountCents))
		}
		if charge.AmountCents > payment.AmountCents {
			log.Ctx(ctx).Warn().
				Str("payment_id", payment.ID).
				Int64("expected_cents", payment.AmountCents).
				Int64("charged_cents", charge.AmountCents).
				Msg("Gateway charged more than payment amount")
		}
		return s.complete(ctx, payment.ID, charge.ID)
	case gateway.StatusFailed, gateway.StatusCanceled:
		message := charge.FailureMessage
		if message == "" {
			message = "payment " + charge.RawStatus
		}
		return s.fail(ctx, payment.ID, charge.ID, message)
	default:
		if charge.ID != "" && !payment.ExternalPaymentID.Valid {
			if _, err := s.db.Queries.SetPaymentExternalID(ctx, dbgen.SetPaymentExternalIDParams{
				ExternalPaymentID: nullString(charge.ID),
				ID:                payment.ID,
			}); err != nil {
				return payment, fmt.Errorf("set external payment id: %w", err)
			}
		}
		return s.Get(ctx, payment.ID)
	}
}

// FindPayment locates a payment by our id, falling back to the gateway's id.
func (s *Service) FindPayment(ctx context.Context, paymentID, externalID string) (dbgen.Payment, error) {
	if paymentID != "" {
		payment, err := s.db.Queries.GetPayment(ctx, paymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return payment, fmt.Errorf("load payment: %w", err)
		}
	}
	if externalID != "" {
		payment, err := s.db.Queries.GetPaymentByExternalID(ctx, nullString(externalID))
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return payment, fmt.Errorf("load payment by external id: %w", err)
		}
	}
	return dbgen.Payment{}, ErrPaymentNotFound
}

// CompletePeer completes a peer-app payment. A paid amount lower than the
// payment's amount fails it instead.
func (s *Service) CompletePeer(ctx context.Context, payment dbgen.Payment, externalID string, paidCents int64) (dbgen.Payment, error) {
	if paidCents > 0 && paidCents < payment.AmountCents {
		return s.fail(ctx, payment.ID, externalID, underpaid(paidCents, payment.AmountCents))
	}
	return s.complete(ctx, payment.ID, externalID)
}

func underpaid(paidCents, expectedCents int64) string {
	return fmt.Sprintf("paid %s, expected %s",
		validation.CentsToAmount(paidCents).StringFixed(2),
		validation.CentsToAmount(expectedCents).StringFixed(2))
}

// FailPayment marks a pending payment failed.
func (s *Service) FailPayment(ctx context.Context, payment dbgen.Payment, externalID, reason string) (dbgen.Payment, error) {
	if reason == "" {
		reason = "payment failed"
	}
	return s.fail(ctx, payment.ID, externalID, reason)
}

// RefundUpdate is a refund state reported by the gateway.
type RefundUpdate struct {
	ExternalRefundID  string
	ExternalPaymentID string
	PaymentID         string
	AmountCents       int64
	Currency          string
	Status            string
	Reason            string
}

// RecordRefund upserts a refund. A refund only moves out of pending; later
// updates for a settled refund are ignored. It reports whether a row changed.
func (s *Service) RecordRefund(ctx context.Context, update RefundUpdate) (bool, error) {
	if update.ExternalRefundID == "" {
		return false, fmt.Errorf("external refund id is required")
	}
	var paymentID sql.NullString
	payment, err := s.FindPayment(ctx, update.PaymentID, update.ExternalPaymentID)
	switch {
	case err == nil:
		paymentID = nullString(payment.ID)
	case !errors.Is(err, ErrPaymentNotFound):
		return false, err
	}

	currency := strings.ToUpper(update.Currency)
	if currency == "" {
		currency = s.currency
	}
	rows, err := s.db.Queries.UpsertRefund(ctx, dbgen.UpsertRefundParams{
		ID:               uuid.NewString(),
		PaymentID:        paymentID,
		ExternalRefundID: update.ExternalRefundID,
		AmountCents:      update.AmountCents,
		Currency:         currency,
		Status:           update.Status,
		Reason:           nullString(update.Reason),
	})
	if err != nil {
		return false, fmt.Errorf("upsert refund: %w", err)
	}
	return rows > 0, nil
}

// Reconcile refreshes stale pending card payments from the gateway. It
// returns how many payments reached a terminal status.
func (s *Service) Reconcile(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	stale, err := s.db.Queries.ListStalePendingPayments(ctx, dbgen.ListStalePendingPaymentsParams{
		Method:        string(MethodCard),
		CreatedBefore: createdBefore.UTC(),
		Limit:         int64(limit),
	})
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	settled := 0
	for _, payment := range stale {
		logger := log.Ctx(ctx).With().Str("payment_id", payment.ID).Logger()
		charge, err := s.gateway.GetPayment(ctx, payment.ExternalPaymentID.String)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to refresh payment from gateway")
			continue
		}
		updated, err := s.ApplyCharge(ctx, payment, charge)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to reconcile payment")
		}
		if updated.Status == StatusCompleted || updated.Status == StatusFailed {
			settled++
		}
	}
	return settled, nil
}

// complete moves a payment to completed, then runs fulfillment and sends the
// receipt. Fulfillment also runs when the payment was already completed so a
// redelivered event can finish a previously interrupted fulfillment; the
// outcome claim keeps it at most once.
func (s *Service) complete(ctx context.Context, paymentID, externalID string) (dbgen.Payment, error) {
	logger := log.Ctx(ctx).With().Str("payment_id", paymentID).Logger()

	rows, err := s.db.Queries.CompletePayment(ctx, dbgen.CompletePaymentParams{
		ExternalPaymentID: nullString(externalID),
		CompletedAt:       sql.NullTime{Time: s.now().UTC(), Valid: true},
		ID:                paymentID,
	})
	if err != nil {
		return dbgen.Payment{}, fmt.Errorf("complete payment: %w", err)
	}
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return payment, err
	}
	if payment.Status != StatusCompleted {
		logger.Warn().Str("status", payment.Status).Msg("Ignoring completion for a payment in a terminal state")
		return payment, nil
	}
	if rows > 0 {
		logger.Info().Int64("amount_cents", payment.AmountCents).Msg("Payment completed")
		s.sendReceipt(ctx, payment)
	}

	if s.fulfiller != nil {
		if _, err := s.fulfiller.Process(ctx, payment); err != nil {
			return payment, fmt.Errorf("fulfill payment: %w", err)
		}
	}
	return payment, nil
}

func (s *Service) fail(ctx context.Context, paymentID, externalID, message string) (dbgen.Payment, error) {
	rows, err := s.db.Queries.FailPayment(ctx, dbgen.FailPaymentParams{
		ExternalPaymentID: nullString(externalID),
		FailureMessage:    nullString(message),
		ID:                paymentID,
	})
	if err != nil {
		return dbgen.Payment{}, fmt.Errorf("fail payment: %w", err)
	}
	if rows > 0 {
		log.Ctx(ctx).Info().
			Str("payment_id", paymentID).
			Str("reason", message).
			Msg("Payment failed")
	}
	return s.Get(ctx, paymentID)
}

func (s *Service) sendReceipt(ctx context.Context, payment dbgen.Payment) {
	if s.receipts == nil || !payment.PayerEmail.Valid {
		return
	}
	details := email.ReceiptDetails{
		LeagueName:  s.leagueName,
		PaymentID:   payment.ID,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Description: payment.Note.String,
		PaidAt:      payment.CompletedAt.Time,
	}
	if meta, ok := s.Receipt(ctx, payment.ID); ok {
		details.ReceiptURL = meta.ReceiptUrl.String
		details.CardBrand = meta.CardBrand.String
		details.CardLast4 = meta.CardLast4.String
	}
	email.SendReceiptEmail(ctx, s.receipts, payment.PayerEmail.String, details)
}

// encodeObject stores an open map as JSON with card data removed.
func encodeObject(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(validation.SanitizePaymentData(v))
	if err != nil {
		return "", fmt.Errorf("encode json object: %w", err)
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
