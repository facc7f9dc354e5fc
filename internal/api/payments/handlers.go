// Package payments exposes the payment intent, submission and verification
// endpoints.
package payments

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/codr1/leagueoffice/internal/api/apiutil"
	"github.com/codr1/leagueoffice/internal/api/authz"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/payments"
	"github.com/codr1/leagueoffice/internal/ratelimit"
	"github.com/codr1/leagueoffice/internal/validation"
)

const (
	// Gateway calls are bounded by the stripe client; this covers the
	// surrounding database work as well.
	submitTimeout = 30 * time.Second
	queryTimeout  = 5 * time.Second

	maxSourceIDLength = 255
	maxNoteLength     = 500
	maxReferenceLen   = 128
)

type Handler struct {
	service    *payments.Service
	limiter    *ratelimit.Limiter
	trustProxy bool
}

func NewHandler(service *payments.Service, limiter *ratelimit.Limiter, trustProxy bool) *Handler {
	return &Handler{
		service:    service,
		limiter:    limiter,
		trustProxy: trustProxy,
	}
}

// PaymentView is the payment shape returned to payers.
type PaymentView struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ReceiptURL string `json:"receiptUrl,omitempty"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type paymentResponse struct {
	Success bool        `json:"success"`
	Status  string      `json:"status,omitempty"`
	Payment PaymentView `json:"payment"`
}

type createIntentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method"`
	Note           string          `json:"note"`
	ReferenceID    string          `json:"referenceId"`
	PayerEmail     string          `json:"payerEmail"`
	Metadata       map[string]any  `json:"metadata"`
	PaymentDetails map[string]any  `json:"paymentDetails"`
}

type createIntentResponse struct {
	Success        bool        `json:"success"`
	PaymentID      string      `json:"paymentId"`
	IdempotencyKey string      `json:"idempotencyKey"`
	Payment        PaymentView `json:"payment"`
}

type submitRequest struct {
	SourceID       string          `json:"sourceId"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Note           string          `json:"note"`
	ReferenceID    string          `json:"referenceId"`
	PostalCode     string          `json:"postalCode"`
}

// POST /api/v1/payments/intents
func (h *Handler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createIntentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validateIntent(req); err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}
	if err := authorizeIntentAction(user, req.Metadata, req.PaymentDetails); err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	payerEmail := strings.TrimSpace(req.PayerEmail)
	if payerEmail == "" {
		payerEmail = user.Email
	}
	payment, err := h.service.CreateIntent(ctx, payments.IntentParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         payments.Method(strings.TrimSpace(req.Method)),
		PayerID:        user.ID,
		PayerEmail:     payerEmail,
		Note:           strings.TrimSpace(req.Note),
		ReferenceID:    strings.TrimSpace(req.ReferenceID),
		Metadata:       req.Metadata,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidAmount) {
			apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create payment intent")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to create payment")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, createIntentResponse{
		Success:        true,
		PaymentID:      payment.ID,
		IdempotencyKey: payment.IdempotencyKey,
		Payment:        NewPaymentView(payment, ""),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write intent response")
	}
}

// POST /api/v1/payments
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	clientIP := ratelimit.GetClientIP(r, h.trustProxy)
	if h.limiter != nil {
		if result := h.limiter.CheckSubmission(user.ID, clientIP); !result.Allowed {
			ratelimit.LogRateLimitExceeded("payment_submit", user.ID, clientIP, result.Reason)
			w.Header().Set("Retry-After", retryAfterSeconds(result.RetryAfter))
			apiutil.WriteError(w, r, http.StatusTooManyRequests, "Too many payment attempts. Please wait and try again.")
			return
		}
	}

	var req submitRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validateSubmit(req); err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}
	if h.limiter != nil {
		h.limiter.RecordSubmission(user.ID, clientIP)
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()

	result, err := h.service.Submit(ctx, payments.SubmitParams{
		SourceID:       strings.TrimSpace(req.SourceID),
		Amount:         req.Amount,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Note:           strings.TrimSpace(req.Note),
		ReferenceID:    strings.TrimSpace(req.ReferenceID),
		PayerID:        user.ID,
		PayerEmail:     user.Email,
	})
	if err != nil {
		h.writeSubmitError(w, r, user.ID, result, err)
		return
	}

	receiptURL := ""
	if result.Charge != nil {
		receiptURL = result.Charge.ReceiptURL
	} else if meta, ok := h.service.Receipt(ctx, result.Payment.ID); ok {
		receiptURL = meta.ReceiptUrl.String
	}

	if result.Payment.Status != payments.StatusCompleted {
		status := result.Payment.Status
		if result.Charge != nil && result.Charge.RawStatus != "" {
			status = result.Charge.RawStatus
		}
		logger.Info().
			Str("payment_id", result.Payment.ID).
			Str("gateway_status", status).
			Msg("Payment not completed")
		apiutil.WriteError(w, r, http.StatusPaymentRequired, "Payment not completed: "+status)
		return
	}

	if h.limiter != nil {
		h.limiter.ResetDeclines(user.ID)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, paymentResponse{
		Success: true,
		Payment: NewPaymentView(result.Payment, receiptURL),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment response")
	}
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, payerID string, result payments.SubmitResult, err error) {
	logger := log.Ctx(r.Context())

	var decline *gateway.DeclineError
	switch {
	case errors.As(err, &decline):
		if h.limiter != nil && h.limiter.RecordDecline(payerID) {
			logger.Warn().Str("payer", ratelimit.SanitizeIdentifier(payerID)).Msg("Payer locked out after repeated declines")
		}
		apiutil.WriteError(w, r, http.StatusPaymentRequired, decline.Message)
	case errors.Is(err, payments.ErrInvalidAmount):
		apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, payments.ErrIdempotencyConflict),
		errors.Is(err, payments.ErrPaymentClosed),
		errors.Is(err, payments.ErrWrongMethod):
		apiutil.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		logger.Error().Err(err).Str("payment_id", result.Payment.ID).Msg("Payment gateway unavailable")
		apiutil.WriteError(w, r, http.StatusBadGateway, "Payment could not be processed. Please try again.")
	default:
		logger.Error().Err(err).Str("payment_id", result.Payment.ID).Msg("Payment submission failed")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Payment could not be processed")
	}
}

// GET /api/v1/payments/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	paymentID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()

	payment, err := h.service.Verify(ctx, paymentID)
	switch {
	case errors.Is(err, payments.ErrPaymentNotFound):
		apiutil.WriteError(w, r, http.StatusNotFound, "Payment not found")
		return
	case err != nil && payment.ID == "":
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load payment")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to load payment")
		return
	case err != nil:
		// Stored state is still accurate; the gateway refresh is retried by reconciliation.
		logger.Warn().Err(err).Str("payment_id", paymentID).Msg("Payment verification against gateway failed")
	}
	if !authz.IsAdmin(user) && payment.PayerID.String != user.ID {
		apiutil.WriteError(w, r, http.StatusNotFound, "Payment not found")
		return
	}

	receiptURL := ""
	if meta, ok := h.service.Receipt(ctx, payment.ID); ok {
		receiptURL = meta.ReceiptUrl.String
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, paymentResponse{
		Success: true,
		Status:  payment.Status,
		Payment: NewPaymentView(payment, receiptURL),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment response")
	}
}

// NewPaymentView converts a stored payment for API responses.
func NewPaymentView(payment dbgen.Payment, receiptURL string) PaymentView {
	return PaymentView{
		ID:         payment.ID,
		Status:     payment.Status,
		ReceiptURL: receiptURL,
		Amount:     apiutil.FormatAmount(payment.AmountCents),
		Currency:   payment.Currency,
	}
}

func validateIntent(req createIntentRequest) error {
	if !validation.ValidatePaymentAmount(req.Amount) {
		return apiutil.FieldError{Field: "amount", Reason: "must be positive with at most two decimal places"}
	}
	if len(req.Note) > maxNoteLength {
		return apiutil.FieldError{Field: "note", Reason: "is too long"}
	}
	if len(req.ReferenceID) > maxReferenceLen {
		return apiutil.FieldError{Field: "referenceId", Reason: "is too long"}
	}
	if currency := strings.TrimSpace(req.Currency); currency != "" && len(currency) != 3 {
		return apiutil.FieldError{Field: "currency", Reason: "must be a three-letter ISO code"}
	}
	switch payments.Method(strings.TrimSpace(req.Method)) {
	case "", payments.MethodCard, payments.MethodPeer:
	default:
		return apiutil.FieldError{Field: "method", Reason: "must be card_processor or peer_app"}
	}
	return nil
}

// authorizeIntentAction limits what a generic intent may fulfil. Team
// changes go through the team endpoints, which check captaincy and roster
// membership; the only action accepted here is a team the caller will
// captain.
func authorizeIntentAction(user *authz.AuthUser, metadata, details map[string]any) error {
	if fulfillment.Discriminator(metadata, details) == "" {
		return nil
	}
	action, err := fulfillment.Normalize(metadata, details)
	if err != nil {
		return apiutil.FieldError{Field: "metadata", Reason: err.Error()}
	}
	creation, ok := action.(fulfillment.TeamCreation)
	if !ok || creation.CaptainID != user.ID {
		return apiutil.HandlerError{
			Status:  http.StatusForbidden,
			Message: "Team changes must be requested through the team endpoints",
		}
	}
	return nil
}

func validateSubmit(req submitRequest) error {
	if _, err := apiutil.RequiredString(req.SourceID, "sourceId", maxSourceIDLength); err != nil {
		return err
	}
	if !validation.ValidatePaymentAmount(req.Amount) {
		return apiutil.FieldError{Field: "amount", Reason: "must be positive with at most two decimal places"}
	}
	if req.PostalCode != "" && !validation.ValidateZipCode(req.PostalCode) {
		return apiutil.FieldError{Field: "postalCode", Reason: "must be 5 digits"}
	}
	if len(req.Note) > maxNoteLength {
		return apiutil.FieldError{Field: "note", Reason: "is too long"}
	}
	if len(req.ReferenceID) > maxReferenceLen {
		return apiutil.FieldError{Field: "referenceId", Reason: "is too long"}
	}
	return nil
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(d.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}
