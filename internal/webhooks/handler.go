// Package webhooks receives signed event deliveries from the card processor
// and the peer-payment app and applies them exactly once.
package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/leagueoffice/internal/api/apiutil"
)

const (
	maxPayloadBytes = 1 << 20
	dispatchTimeout = 30 * time.Second
)

// HandlerFunc applies one kind of event.
type HandlerFunc func(ctx context.Context, event Event) error

type ackResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler verifies deliveries, consults the ledger and dispatches by Kind.
type Handler struct {
	ledger   *Ledger
	handlers map[Kind]HandlerFunc
}

func NewHandler(ledger *Ledger, payments PaymentService) *Handler {
	p := &processor{payments: payments}
	return &Handler{
		ledger: ledger,
		handlers: map[Kind]HandlerFunc{
			KindPaymentUpdated: p.handlePaymentUpdated,
			KindRefundUpdated:  p.handleRefundUpdated,
			KindPeerCompleted:  p.handlePeerCompleted,
			KindPeerFailed:     p.handlePeerFailed,
		},
	}
}

// Endpoint returns the HTTP handler for one provider.
func (h *Handler) Endpoint(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context()).With().Str("provider", source.Provider()).Logger()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read webhook body")
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
			return
		}

		if err := source.Verify(payload, r.Header.Get(source.SignatureHeader())); err != nil {
			logger.Warn().Err(err).Msg("Webhook signature rejected")
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "Invalid signature"})
			return
		}

		event, err := source.Parse(payload)
		if err != nil {
			logger.Warn().Err(err).Msg("Malformed webhook event")
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Malformed event"})
			return
		}

		logger = logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()
		ctx, cancel := context.WithTimeout(logger.WithContext(r.Context()), dispatchTimeout)
		defer cancel()

		status, response := h.Dispatch(ctx, event)
		writeJSON(w, r, status, response)
	}
}

// Dispatch runs a verified event through the ledger and its handler and
// returns the HTTP status and body to acknowledge it with.
func (h *Handler) Dispatch(ctx context.Context, event Event) (int, any) {
	logger := log.Ctx(ctx)

	state, err := h.ledger.Claim(ctx, event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to claim webhook event")
		return http.StatusInternalServerError, errorResponse{Error: "Webhook processing failed"}
	}
	switch state {
	case AlreadyProcessed:
		logger.Info().Msg("Duplicate webhook event skipped")
		return http.StatusOK, ackResponse{Received: true, Duplicate: true}
	case InFlight:
		logger.Info().Msg("Webhook event is already being processed")
		return http.StatusConflict, errorResponse{Error: "Event is being processed"}
	}

	handle, ok := h.handlers[event.Kind]
	if !ok {
		logger.Info().Msg("Unhandled webhook event type")
	} else if err := handle(ctx, event); err != nil {
		logger.Error().Err(err).Msg("Webhook handler failed")
		if markErr := h.ledger.MarkFailed(context.WithoutCancel(ctx), event, err); markErr != nil {
			logger.Error().Err(markErr).Msg("Failed to record webhook failure")
		}
		return http.StatusInternalServerError, errorResponse{Error: "Webhook processing failed"}
	}

	if err := h.ledger.MarkProcessed(context.WithoutCancel(ctx), event); err != nil {
		// The effect is applied and idempotent; a redelivery will be a no-op.
		logger.Error().Err(err).Msg("Failed to mark webhook event processed")
	}
	return http.StatusOK, ackResponse{Received: true}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write webhook response")
	}
}

