// internal/api/admin/handlers.go
package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/leagueoffice/internal/api/apiutil"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/fulfillment"
)

const (
	outcomeQueryTimeout = 5 * time.Second
	retryTimeout        = 30 * time.Second
)

// OutcomeStore is the part of the fulfillment processor the operator
// endpoints use.
type OutcomeStore interface {
	Outcome(ctx context.Context, paymentID string) (dbgen.PaymentOutcome, error)
	ListOutcomes(ctx context.Context, status fulfillment.OutcomeStatus, limit int) ([]dbgen.PaymentOutcome, error)
	Retry(ctx context.Context, paymentID string) (fulfillment.Result, error)
}

type Handler struct {
	outcomes OutcomeStore
}

func NewHandler(outcomes OutcomeStore) *Handler {
	return &Handler{outcomes: outcomes}
}

type OutcomeView struct {
	PaymentID string    `json:"paymentId"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Detail    *string   `json:"detail,omitempty"`
	Attempts  int64     `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewOutcomeView(outcome dbgen.PaymentOutcome) OutcomeView {
	return OutcomeView{
		PaymentID: outcome.PaymentID,
		Action:    outcome.Action,
		Status:    outcome.Status,
		Detail:    apiutil.NullStringValue(outcome.Detail),
		Attempts:  outcome.Attempts,
		CreatedAt: outcome.CreatedAt,
		UpdatedAt: outcome.UpdatedAt,
	}
}

// GET /api/v1/admin/payments/{id}/outcome
func (h *Handler) HandleGetOutcome(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	paymentID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), outcomeQueryTimeout)
	defer cancel()

	outcome, err := h.outcomes.Outcome(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, r, http.StatusNotFound, "No outcome recorded for payment")
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to load payment outcome")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to load outcome")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"outcome": NewOutcomeView(outcome)}); err != nil {
		logger.Error().Err(err).Msg("Failed to write outcome response")
	}
}

// POST /api/v1/admin/payments/{id}/retry
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	paymentID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), retryTimeout)
	defer cancel()

	result, err := h.outcomes.Retry(ctx, paymentID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		apiutil.WriteError(w, r, http.StatusNotFound, "Payment not found")
		return
	case errors.Is(err, fulfillment.ErrNotRetryable):
		apiutil.WriteError(w, r, http.StatusConflict, "Outcome is "+string(result.Status)+" and cannot be retried")
		return
	case errors.Is(err, fulfillment.ErrPaymentNotCompleted):
		apiutil.WriteError(w, r, http.StatusConflict, "Payment is not completed")
		return
	default:
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("Fulfillment retry failed")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Retry failed")
		return
	}

	logger.Info().
		Str("payment_id", paymentID).
		Str("status", string(result.Status)).
		Msg("Operator retried fulfillment")
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "result": result}); err != nil {
		logger.Error().Err(err).Msg("Failed to write retry response")
	}
}

// GET /api/v1/admin/outcomes?status=failed&limit=50
func (h *Handler) HandleListOutcomes(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	status, err := ParseOutcomeStatus(r.URL.Query().Get("status"))
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}
	limit, err := apiutil.LimitFromQuery(r)
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), outcomeQueryTimeout)
	defer cancel()

	outcomes, err := h.outcomes.ListOutcomes(ctx, status, limit)
	if err != nil {
		logger.Error().Err(err).Str("status", string(status)).Msg("Failed to list outcomes")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to list outcomes")
		return
	}

	views := make([]OutcomeView, 0, len(outcomes))
	for _, outcome := range outcomes {
		views = append(views, NewOutcomeView(outcome))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"outcomes": views}); err != nil {
		logger.Error().Err(err).Msg("Failed to write outcomes response")
	}
}

// ParseOutcomeStatus accepts a payment_outcomes status; empty means failed.
func ParseOutcomeStatus(raw string) (fulfillment.OutcomeStatus, error) {
	switch status := fulfillment.OutcomeStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "":
		return fulfillment.OutcomeFailed, nil
	case fulfillment.OutcomeProcessing, fulfillment.OutcomeApplied, fulfillment.OutcomeSkipped, fulfillment.OutcomeFailed:
		return status, nil
	}
	return "", apiutil.FieldError{Field: "status", Reason: "must be one of processing, applied, skipped, failed"}
}
