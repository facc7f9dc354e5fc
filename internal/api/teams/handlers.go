// internal/api/teams/handlers.go
package teams

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/codr1/leagueoffice/internal/api/apiutil"
	"github.com/codr1/leagueoffice/internal/api/authz"
	apipayments "github.com/codr1/leagueoffice/internal/api/payments"
	"github.com/codr1/leagueoffice/internal/db"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/payments"
)

const (
	teamQueryTimeout = 5 * time.Second
	teamIDPathKey    = "id"
	maxIDLength      = 128
)

// changeRequestKinds are the change requests a team can pay for.
var changeRequestKinds = map[fulfillment.Kind]bool{
	fulfillment.KindTeamTransfer:   true,
	fulfillment.KindRosterChange:   true,
	fulfillment.KindOnlineIDChange: true,
	fulfillment.KindTeamRebrand:    true,
}

type Handler struct {
	db       *db.DB
	payments *payments.Service
}

func NewHandler(database *db.DB, service *payments.Service) *Handler {
	return &Handler{db: database, payments: service}
}

type playerResponse struct {
	PlayerID string  `json:"playerId"`
	Role     string  `json:"role"`
	OnlineID *string `json:"onlineId,omitempty"`
}

type teamResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CaptainID *string          `json:"captainId,omitempty"`
	Players   []playerResponse `json:"players"`
}

type changeRequestBody struct {
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	PayerEmail string          `json:"payerEmail"`
	Details    map[string]any  `json:"details"`
}

type changeRequestView struct {
	ID     string `json:"id"`
	TeamID string `json:"teamId"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type registrationBody struct {
	Kind       string          `json:"kind"`
	EventID    string          `json:"eventId"`
	TeamID     string          `json:"teamId"`
	Amount     decimal.Decimal `json:"amount"`
	PayerEmail string          `json:"payerEmail"`
}

type registrationView struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	EventID       string `json:"eventId"`
	TeamID        string `json:"teamId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

type pendingPaymentResponse struct {
	Success        bool                    `json:"success"`
	ChangeRequest  *changeRequestView      `json:"changeRequest,omitempty"`
	Registration   *registrationView       `json:"registration,omitempty"`
	IdempotencyKey string                  `json:"idempotencyKey"`
	Payment        apipayments.PaymentView `json:"payment"`
}

// GET /api/v1/teams/{id}
func (h *Handler) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	team, err := h.db.Queries.GetTeam(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, r, http.StatusNotFound, "Team not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("team_id", teamID).Msg("Failed to load team")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to load team")
		return
	}
	players, err := h.db.Queries.ListTeamPlayers(ctx, teamID)
	if err != nil {
		logger.Error().Err(err).Str("team_id", teamID).Msg("Failed to load roster")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to load team")
		return
	}

	response := teamResponse{
		ID:        team.ID,
		Name:      team.Name,
		CaptainID: apiutil.NullStringValue(team.CaptainID),
		Players:   make([]playerResponse, 0, len(players)),
	}
	for _, p := range players {
		response.Players = append(response.Players, playerResponse{
			PlayerID: p.PlayerID,
			Role:     p.Role,
			OnlineID: apiutil.NullStringValue(p.OnlineID),
		})
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"team": response}); err != nil {
		logger.Error().Err(err).Msg("Failed to write team response")
	}
}

// POST /api/v1/teams/{id}/change-requests
func (h *Handler) HandleCreateChangeRequest(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	var body changeRequestBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	kind := fulfillment.Kind(strings.ToLower(strings.TrimSpace(body.Type)))
	if !changeRequestKinds[kind] {
		apiutil.WriteHandlerError(w, r, apiutil.FieldError{
			Field:  "type",
			Reason: "must be one of team_transfer, roster_change, online_id_change, team_rebrand",
		})
		return
	}

	requestID := uuid.NewString()
	metadata := make(map[string]any, len(body.Details)+3)
	for k, v := range body.Details {
		metadata[k] = v
	}
	metadata["event_type"] = string(kind)
	metadata["team_id"] = teamID
	metadata["request_id"] = requestID

	action, err := fulfillment.Normalize(metadata, nil)
	if err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if err := h.authorizeTeamAction(ctx, user, teamID, action); err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	detailsJSON, err := json.Marshal(body.Details)
	if err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid details")
		return
	}
	if body.Details == nil {
		detailsJSON = []byte("{}")
	}

	var (
		request dbgen.TeamChangeRequest
		payment dbgen.Payment
	)
	err = h.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		request, err = tx.Queries.CreateChangeRequest(ctx, dbgen.CreateChangeRequestParams{
			ID:          requestID,
			TeamID:      teamID,
			RequestType: string(kind),
			Metadata:    string(detailsJSON),
			RequestedBy: sql.NullString{String: user.ID, Valid: true},
		})
		if err != nil {
			return err
		}
		payment, err = h.payments.CreateIntentTx(ctx, tx, payments.IntentParams{
			Amount:     body.Amount,
			Method:     payments.MethodCard,
			PayerID:    user.ID,
			PayerEmail: payerEmail(body.PayerEmail, user),
			Note:       changeRequestNote(kind),
			Metadata:   metadata,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidAmount) {
			apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Err(err).Str("team_id", teamID).Str("request_type", string(kind)).Msg("Failed to create change request")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to create change request")
		return
	}

	logger.Info().
		Str("team_id", teamID).
		Str("request_id", request.ID).
		Str("payment_id", payment.ID).
		Str("request_type", request.RequestType).
		Msg("Change request created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, pendingPaymentResponse{
		Success: true,
		ChangeRequest: &changeRequestView{
			ID:     request.ID,
			TeamID: request.TeamID,
			Type:   request.RequestType,
			Status: request.Status,
		},
		IdempotencyKey: payment.IdempotencyKey,
		Payment:        apipayments.NewPaymentView(payment, ""),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write change request response")
	}
}

// POST /api/v1/registrations
func (h *Handler) HandleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body registrationBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	kind := fulfillment.Kind(strings.ToLower(strings.TrimSpace(body.Kind)))
	if kind != fulfillment.KindTournamentRegistration && kind != fulfillment.KindLeagueRegistration {
		apiutil.WriteHandlerError(w, r, apiutil.FieldError{Field: "kind", Reason: "must be tournament or league"})
		return
	}
	eventID, err := apiutil.RequiredString(body.EventID, "eventId", maxIDLength)
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}
	teamID, err := apiutil.RequiredString(body.TeamID, "teamId", maxIDLength)
	if err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if err := h.requireCaptain(ctx, user, teamID); err != nil {
		apiutil.WriteHandlerError(w, r, err)
		return
	}

	view := registrationView{ID: uuid.NewString(), Kind: string(kind), EventID: eventID, TeamID: teamID}
	var payment dbgen.Payment
	err = h.db.RunInTx(ctx, func(tx *db.DB) error {
		switch kind {
		case fulfillment.KindTournamentRegistration:
			reg, err := tx.Queries.CreateTournamentRegistration(ctx, dbgen.CreateTournamentRegistrationParams{
				ID:           view.ID,
				TournamentID: eventID,
				TeamID:       teamID,
			})
			if err != nil {
				return err
			}
			view.Status, view.PaymentStatus = reg.Status, reg.PaymentStatus
		default:
			reg, err := tx.Queries.CreateLeagueRegistration(ctx, dbgen.CreateLeagueRegistrationParams{
				ID:       view.ID,
				LeagueID: eventID,
				TeamID:   teamID,
			})
			if err != nil {
				return err
			}
			view.Status, view.PaymentStatus = reg.Status, reg.PaymentStatus
		}

		var err error
		payment, err = h.payments.CreateIntentTx(ctx, tx, payments.IntentParams{
			Amount:      body.Amount,
			Method:      payments.MethodCard,
			PayerID:     user.ID,
			PayerEmail:  payerEmail(body.PayerEmail, user),
			Note:        string(kind) + " registration",
			ReferenceID: view.ID,
			Metadata: map[string]any{
				"event_type": string(kind),
				"event_id":   eventID,
				"team_id":    teamID,
			},
		})
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, payments.ErrInvalidAmount):
		apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	case db.IsUniqueViolation(err):
		apiutil.WriteError(w, r, http.StatusConflict, "Team is already registered for this event")
		return
	default:
		logger.Error().Err(err).Str("team_id", teamID).Str("event_id", eventID).Msg("Failed to create registration")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to create registration")
		return
	}

	logger.Info().
		Str("team_id", teamID).
		Str("event_id", eventID).
		Str("registration_id", view.ID).
		Str("payment_id", payment.ID).
		Msg("Registration created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, pendingPaymentResponse{
		Success:        true,
		Registration:   &view,
		IdempotencyKey: payment.IdempotencyKey,
		Payment:        apipayments.NewPaymentView(payment, ""),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write registration response")
	}
}

// authorizeTeamAction allows the captain (or an admin) to request any change;
// a player may also change their own online id.
func (h *Handler) authorizeTeamAction(ctx context.Context, user *authz.AuthUser, teamID string, action fulfillment.Action) error {
	if change, ok := action.(fulfillment.OnlineIDChange); ok && change.PlayerID == user.ID {
		return h.requireMember(ctx, teamID, user.ID)
	}
	return h.requireCaptain(ctx, user, teamID)
}

func (h *Handler) requireCaptain(ctx context.Context, user *authz.AuthUser, teamID string) error {
	team, err := h.db.Queries.GetTeam(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Team not found", Err: err}
	}
	if err != nil {
		return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load team", Err: err}
	}
	if authz.IsAdmin(user) || team.CaptainID.String == user.ID {
		return nil
	}
	return apiutil.HandlerError{Status: http.StatusForbidden, Message: "Only the team captain can make this request", Err: authz.ErrForbidden}
}

func (h *Handler) requireMember(ctx context.Context, teamID, playerID string) error {
	_, err := h.db.Queries.GetTeamPlayer(ctx, dbgen.GetTeamPlayerParams{TeamID: teamID, PlayerID: playerID})
	if errors.Is(err, sql.ErrNoRows) {
		return apiutil.HandlerError{Status: http.StatusForbidden, Message: "Not a member of this team", Err: authz.ErrForbidden}
	}
	if err != nil {
		return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load roster", Err: err}
	}
	return nil
}

func payerEmail(fromBody string, user *authz.AuthUser) string {
	if email := strings.TrimSpace(fromBody); email != "" {
		return email
	}
	return user.Email
}

func changeRequestNote(kind fulfillment.Kind) string {
	switch kind {
	case fulfillment.KindTeamTransfer:
		return "Team ownership transfer"
	case fulfillment.KindRosterChange:
		return "Roster change"
	case fulfillment.KindOnlineIDChange:
		return "Online ID change"
	case fulfillment.KindTeamRebrand:
		return "Team rebrand"
	}
	return string(kind)
}
