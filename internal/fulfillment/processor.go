package fulfillment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/leagueoffice/internal/db"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
)

var (
	ErrTeamNotFound         = errors.New("team not found")
	ErrNotRosterMember      = errors.New("player is not on the team roster")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrCaptainRemoval       = errors.New("the team captain cannot be removed from the roster")
	ErrPaymentNotCompleted  = errors.New("payment is not completed")
	ErrNotRetryable         = errors.New("payment outcome is not retryable")
)

// OutcomeStatus mirrors payment_outcomes.status.
type OutcomeStatus string

const (
	OutcomeProcessing OutcomeStatus = "processing"
	OutcomeApplied    OutcomeStatus = "applied"
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeFailed     OutcomeStatus = "failed"
)

const unknownAction = "unknown"

// Result describes what Process did for one payment.
type Result struct {
	PaymentID string        `json:"paymentId"`
	Action    string        `json:"action,omitempty"`
	Status    OutcomeStatus `json:"status,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	// Duplicate is set when another delivery already owns the outcome.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Processor applies fulfillment actions at most once per payment. The
// payment_outcomes row is the claim: only a missing or failed outcome can be
// (re)claimed.
type Processor struct {
	db          *db.DB
	maxAttempts int
	now         func() time.Time
}

func NewProcessor(database *db.DB, maxAttempts int) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Processor{
		db:          database,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Process applies the action carried by a completed payment. Business failures
// are recorded on the payment outcome and the linked change request; only
// storage errors are returned. A failed outcome is re-attempted until it has
// been tried maxAttempts times; later deliveries are reported as duplicates.
func (p *Processor) Process(ctx context.Context, payment dbgen.Payment) (Result, error) {
	return p.process(ctx, payment, int64(p.maxAttempts))
}

func (p *Processor) process(ctx context.Context, payment dbgen.Payment, attemptLimit int64) (Result, error) {
	logger := log.Ctx(ctx).With().Str("payment_id", payment.ID).Logger()
	result := Result{PaymentID: payment.ID}

	if payment.Status != "completed" {
		return result, ErrPaymentNotCompleted
	}

	metadata, metaErr := DecodeObject(payment.Metadata)
	details, detailsErr := DecodeObject(payment.PaymentDetails)
	if metaErr != nil || detailsErr != nil {
		result.Action = unknownAction
		return p.skip(ctx, result, attemptLimit, errors.Join(metaErr, detailsErr))
	}

	action, err := Normalize(metadata, details)
	switch {
	case errors.Is(err, ErrNoAction):
		logger.Debug().Msg("Payment has no fulfillment action")
		return result, nil
	case err != nil:
		result.Action = Discriminator(metadata, details)
		return p.skip(ctx, result, attemptLimit, err)
	}
	result.Action = string(action.Kind())

	claimed, err := p.claim(ctx, result, attemptLimit)
	if err != nil {
		return result, err
	}
	if !claimed {
		return p.duplicate(ctx, result)
	}

	var detail string
	applyErr := p.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		detail, err = p.apply(ctx, tx, payment, action)
		return err
	})

	if applyErr != nil {
		result.Status = OutcomeFailed
		result.Detail = applyErr.Error()
		logger.Error().
			Err(applyErr).
			Str("action", result.Action).
			Msg("Fulfillment action failed")
		if err := p.finish(ctx, result); err != nil {
			return result, err
		}
		p.recordRequestFailure(ctx, action.ChangeRequestID(), applyErr)
		return result, nil
	}

	result.Status = OutcomeApplied
	result.Detail = detail
	if err := p.finish(ctx, result); err != nil {
		return result, err
	}
	p.approveRequest(ctx, action.ChangeRequestID())

	logger.Info().
		Str("action", result.Action).
		Str("detail", detail).
		Msg("Fulfillment action applied")
	return result, nil
}

// Retry re-runs fulfillment for a payment whose outcome failed. Operator
// retries are not bound by the attempt limit.
func (p *Processor) Retry(ctx context.Context, paymentID string) (Result, error) {
	payment, err := p.db.Queries.GetPayment(ctx, paymentID)
	if err != nil {
		return Result{PaymentID: paymentID}, fmt.Errorf("load payment: %w", err)
	}
	outcome, err := p.db.Queries.GetPaymentOutcome(ctx, paymentID)
	if err == nil && outcome.Status != string(OutcomeFailed) {
		return outcomeResult(outcome), ErrNotRetryable
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Result{PaymentID: paymentID}, fmt.Errorf("load outcome: %w", err)
	}
	return p.process(ctx, payment, math.MaxInt64)
}

// RetryFailed resets outcomes stuck in processing since before staleBefore,
// then retries failed outcomes that are under the attempt limit. It returns
// how many outcomes were applied.
func (p *Processor) RetryFailed(ctx context.Context, staleBefore time.Time, limit int) (int, error) {
	reset, err := p.db.Queries.ResetStaleOutcomes(ctx, staleBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("reset stale outcomes: %w", err)
	}
	if reset > 0 {
		log.Ctx(ctx).Warn().Int64("count", reset).Msg("Reset stale fulfillment outcomes")
	}

	outcomes, err := p.db.Queries.ListRetryableOutcomes(ctx, dbgen.ListRetryableOutcomesParams{
		MaxAttempts: int64(p.maxAttempts),
		Limit:       int64(limit),
	})
	if err != nil {
		return 0, fmt.Errorf("list retryable outcomes: %w", err)
	}

	applied := 0
	for _, outcome := range outcomes {
		result, err := p.Retry(ctx, outcome.PaymentID)
		if err != nil {
			log.Ctx(ctx).Error().
				Err(err).
				Str("payment_id", outcome.PaymentID).
				Msg("Failed to retry fulfillment")
			continue
		}
		if result.Status == OutcomeApplied {
			applied++
		}
	}
	return applied, nil
}

// Outcome returns the recorded outcome for a payment.
func (p *Processor) Outcome(ctx context.Context, paymentID string) (dbgen.PaymentOutcome, error) {
	return p.db.Queries.GetPaymentOutcome(ctx, paymentID)
}

// ListOutcomes returns outcomes with the given status, newest first.
func (p *Processor) ListOutcomes(ctx context.Context, status OutcomeStatus, limit int) ([]dbgen.PaymentOutcome, error) {
	return p.db.Queries.ListPaymentOutcomesByStatus(ctx, dbgen.ListPaymentOutcomesByStatusParams{
		Status: string(status),
		Limit:  int64(limit),
	})
}

func (p *Processor) claim(ctx context.Context, result Result, attemptLimit int64) (bool, error) {
	rows, err := p.db.Queries.ClaimPaymentOutcome(ctx, dbgen.ClaimPaymentOutcomeParams{
		PaymentID:   result.PaymentID,
		Action:      result.Action,
		MaxAttempts: attemptLimit,
	})
	if err != nil {
		return false, fmt.Errorf("claim payment outcome: %w", err)
	}
	return rows > 0, nil
}

func (p *Processor) finish(ctx context.Context, result Result) error {
	err := p.db.Queries.FinishPaymentOutcome(ctx, dbgen.FinishPaymentOutcomeParams{
		Status:    string(result.Status),
		Detail:    sql.NullString{String: result.Detail, Valid: result.Detail != ""},
		PaymentID: result.PaymentID,
	})
	if err != nil {
		return fmt.Errorf("record payment outcome: %w", err)
	}
	return nil
}

// skip records a skipped outcome for a payment whose action cannot be
// resolved. Nothing else is mutated.
func (p *Processor) skip(ctx context.Context, result Result, attemptLimit int64, cause error) (Result, error) {
	if result.Action == "" {
		result.Action = unknownAction
	}
	claimed, err := p.claim(ctx, result, attemptLimit)
	if err != nil {
		return result, err
	}
	if !claimed {
		return p.duplicate(ctx, result)
	}

	result.Status = OutcomeSkipped
	result.Detail = cause.Error()
	log.Ctx(ctx).Warn().
		Err(cause).
		Str("payment_id", result.PaymentID).
		Str("action", result.Action).
		Msg("Skipping fulfillment")
	if err := p.finish(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Processor) duplicate(ctx context.Context, result Result) (Result, error) {
	outcome, err := p.db.Queries.GetPaymentOutcome(ctx, result.PaymentID)
	if err != nil {
		return result, fmt.Errorf("load payment outcome: %w", err)
	}
	existing := outcomeResult(outcome)
	existing.Duplicate = true
	log.Ctx(ctx).Info().
		Str("payment_id", result.PaymentID).
		Str("status", string(existing.Status)).
		Msg("Fulfillment already handled")
	return existing, nil
}

func (p *Processor) approveRequest(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}
	_, err := p.db.Queries.ApproveChangeRequest(ctx, dbgen.ApproveChangeRequestParams{
		ProcessedAt: sql.NullTime{Time: p.now().UTC(), Valid: true},
		ID:          requestID,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", requestID).Msg("Failed to approve change request")
	}
}

func (p *Processor) recordRequestFailure(ctx context.Context, requestID string, cause error) {
	if requestID == "" {
		return
	}
	_, err := p.db.Queries.RecordChangeRequestFailure(ctx, dbgen.RecordChangeRequestFailureParams{
		LastError:   sql.NullString{String: cause.Error(), Valid: true},
		MaxAttempts: int64(p.maxAttempts),
		ID:          requestID,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", requestID).Msg("Failed to record change request failure")
	}
}

func (p *Processor) apply(ctx context.Context, tx *db.DB, payment dbgen.Payment, action Action) (string, error) {
	switch a := action.(type) {
	case TeamTransfer:
		return applyTeamTransfer(ctx, tx.Queries, a)
	case TournamentRegistration:
		return applyTournamentRegistration(ctx, tx.Queries, payment.ID, a)
	case LeagueRegistration:
		return applyLeagueRegistration(ctx, tx.Queries, payment.ID, a)
	case TeamRebrand:
		return applyTeamRebrand(ctx, tx.Queries, a)
	case RosterChange:
		return applyRosterChange(ctx, tx.Queries, a)
	case OnlineIDChange:
		return applyOnlineIDChange(ctx, tx.Queries, a)
	case TeamCreation:
		return applyTeamCreation(ctx, tx.Queries, payment.ID, a)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func outcomeResult(outcome dbgen.PaymentOutcome) Result {
	return Result{
		PaymentID: outcome.PaymentID,
		Action:    outcome.Action,
		Status:    OutcomeStatus(outcome.Status),
		Detail:    outcome.Detail.String,
	}
}

func loadTeam(ctx context.Context, q *dbgen.Queries, teamID string) (dbgen.Team, error) {
	team, err := q.GetTeam(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return team, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	if err != nil {
		return team, fmt.Errorf("load team: %w", err)
	}
	return team, nil
}

func loadMember(ctx context.Context, q *dbgen.Queries, teamID, playerID string) (dbgen.TeamPlayer, error) {
	member, err := q.GetTeamPlayer(ctx, dbgen.GetTeamPlayerParams{TeamID: teamID, PlayerID: playerID})
	if errors.Is(err, sql.ErrNoRows) {
		return member, fmt.Errorf("%w: %s", ErrNotRosterMember, playerID)
	}
	if err != nil {
		return member, fmt.Errorf("load roster member: %w", err)
	}
	return member, nil
}

// applyTeamTransfer moves the captaincy. Existing captain rows are demoted
// before the new captain is promoted because a team may hold only one.
func applyTeamTransfer(ctx context.Context, q *dbgen.Queries, a TeamTransfer) (string, error) {
	team, err := loadTeam(ctx, q, a.TeamID)
	if err != nil {
		return "", err
	}
	member, err := loadMember(ctx, q, a.TeamID, a.NewCaptainID)
	if err != nil {
		return "", err
	}
	if team.CaptainID.String == a.NewCaptainID && member.Role == "captain" {
		return "captain already set", nil
	}

	if _, err := q.UpdateTeamCaptain(ctx, dbgen.UpdateTeamCaptainParams{
		CaptainID: sql.NullString{String: a.NewCaptainID, Valid: true},
		ID:        a.TeamID,
	}); err != nil {
		return "", fmt.Errorf("update team captain: %w", err)
	}

	players, err := q.ListTeamPlayers(ctx, a.TeamID)
	if err != nil {
		return "", fmt.Errorf("list roster: %w", err)
	}
	for _, player := range players {
		if player.Role != "captain" || player.PlayerID == a.NewCaptainID {
			continue
		}
		if _, err := q.SetTeamPlayerRole(ctx, dbgen.SetTeamPlayerRoleParams{
			Role:     "player",
			TeamID:   a.TeamID,
			PlayerID: player.PlayerID,
		}); err != nil {
			return "", fmt.Errorf("demote previous captain: %w", err)
		}
	}

	if _, err := q.SetTeamPlayerRole(ctx, dbgen.SetTeamPlayerRoleParams{
		Role:     "captain",
		TeamID:   a.TeamID,
		PlayerID: a.NewCaptainID,
	}); err != nil {
		return "", fmt.Errorf("promote new captain: %w", err)
	}

	previous := team.CaptainID.String
	if previous == "" {
		previous = "none"
	}
	return fmt.Sprintf("captain %s -> %s", previous, a.NewCaptainID), nil
}

func applyTournamentRegistration(ctx context.Context, q *dbgen.Queries, paymentID string, a TournamentRegistration) (string, error) {
	rows, err := q.ApproveTournamentRegistration(ctx, dbgen.ApproveTournamentRegistrationParams{
		PaymentID:    sql.NullString{String: paymentID, Valid: true},
		TournamentID: a.TournamentID,
		TeamID:       a.TeamID,
	})
	if err != nil {
		return "", fmt.Errorf("approve tournament registration: %w", err)
	}
	if rows > 0 {
		return fmt.Sprintf("tournament %s registration approved", a.TournamentID), nil
	}

	_, err = q.GetTournamentRegistration(ctx, dbgen.GetTournamentRegistrationParams{
		TournamentID: a.TournamentID,
		TeamID:       a.TeamID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: tournament %s team %s", ErrRegistrationNotFound, a.TournamentID, a.TeamID)
	}
	if err != nil {
		return "", fmt.Errorf("load tournament registration: %w", err)
	}
	return "registration already approved", nil
}

func applyLeagueRegistration(ctx context.Context, q *dbgen.Queries, paymentID string, a LeagueRegistration) (string, error) {
	rows, err := q.ApproveLeagueRegistration(ctx, dbgen.ApproveLeagueRegistrationParams{
		PaymentID: sql.NullString{String: paymentID, Valid: true},
		LeagueID:  a.LeagueID,
		TeamID:    a.TeamID,
	})
	if err != nil {
		return "", fmt.Errorf("approve league registration: %w", err)
	}
	if rows > 0 {
		return fmt.Sprintf("league %s registration approved", a.LeagueID), nil
	}

	_, err = q.GetLeagueRegistration(ctx, dbgen.GetLeagueRegistrationParams{
		LeagueID: a.LeagueID,
		TeamID:   a.TeamID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: league %s team %s", ErrRegistrationNotFound, a.LeagueID, a.TeamID)
	}
	if err != nil {
		return "", fmt.Errorf("load league registration: %w", err)
	}
	return "registration already approved", nil
}

func applyTeamRebrand(ctx context.Context, q *dbgen.Queries, a TeamRebrand) (string, error) {
	team, err := loadTeam(ctx, q, a.TeamID)
	if err != nil {
		return "", err
	}
	if team.Name == a.NewName {
		return "name already set", nil
	}
	if _, err := q.UpdateTeamName(ctx, dbgen.UpdateTeamNameParams{Name: a.NewName, ID: a.TeamID}); err != nil {
		return "", fmt.Errorf("update team name: %w", err)
	}
	return fmt.Sprintf("renamed %q -> %q", team.Name, a.NewName), nil
}

func applyRosterChange(ctx context.Context, q *dbgen.Queries, a RosterChange) (string, error) {
	team, err := loadTeam(ctx, q, a.TeamID)
	if err != nil {
		return "", err
	}

	switch a.Operation {
	case RosterAdd:
		rows, err := q.AddTeamPlayer(ctx, dbgen.AddTeamPlayerParams{
			TeamID:   a.TeamID,
			PlayerID: a.PlayerID,
			Role:     "player",
			OnlineID: sql.NullString{String: a.OnlineID, Valid: a.OnlineID != ""},
		})
		if err != nil {
			return "", fmt.Errorf("add roster member: %w", err)
		}
		if rows == 0 {
			return "player already on roster", nil
		}
		return fmt.Sprintf("added %s", a.PlayerID), nil
	case RosterRemove:
		if team.CaptainID.String == a.PlayerID {
			return "", ErrCaptainRemoval
		}
		rows, err := q.RemoveTeamPlayer(ctx, dbgen.RemoveTeamPlayerParams{TeamID: a.TeamID, PlayerID: a.PlayerID})
		if err != nil {
			return "", fmt.Errorf("remove roster member: %w", err)
		}
		if rows == 0 {
			return "player already removed", nil
		}
		return fmt.Sprintf("removed %s", a.PlayerID), nil
	default:
		return "", fmt.Errorf("%w: roster operation %q", ErrUnknownAction, a.Operation)
	}
}

func applyOnlineIDChange(ctx context.Context, q *dbgen.Queries, a OnlineIDChange) (string, error) {
	member, err := loadMember(ctx, q, a.TeamID, a.PlayerID)
	if err != nil {
		return "", err
	}
	if member.OnlineID.String == a.OnlineID {
		return "online id already set", nil
	}
	if _, err := q.SetTeamPlayerOnlineID(ctx, dbgen.SetTeamPlayerOnlineIDParams{
		OnlineID: sql.NullString{String: a.OnlineID, Valid: true},
		TeamID:   a.TeamID,
		PlayerID: a.PlayerID,
	}); err != nil {
		return "", fmt.Errorf("update online id: %w", err)
	}
	return fmt.Sprintf("online id for %s set", a.PlayerID), nil
}

// applyTeamCreation creates at most one team per payment, keyed by
// teams.creation_payment_id.
func applyTeamCreation(ctx context.Context, q *dbgen.Queries, paymentID string, a TeamCreation) (string, error) {
	creationPayment := sql.NullString{String: paymentID, Valid: true}
	existing, err := q.GetTeamByCreationPayment(ctx, creationPayment)
	if err == nil {
		return fmt.Sprintf("team %s already created", existing.ID), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load team by payment: %w", err)
	}

	team, err := q.CreateTeam(ctx, dbgen.CreateTeamParams{
		ID:                uuid.NewString(),
		Name:              a.TeamName,
		CaptainID:         sql.NullString{String: a.CaptainID, Valid: true},
		CreationPaymentID: creationPayment,
	})
	if err != nil {
		return "", fmt.Errorf("create team: %w", err)
	}
	if _, err := q.AddTeamPlayer(ctx, dbgen.AddTeamPlayerParams{
		TeamID:   team.ID,
		PlayerID: a.CaptainID,
		Role:     "captain",
		OnlineID: sql.NullString{String: a.OnlineID, Valid: a.OnlineID != ""},
	}); err != nil {
		return "", fmt.Errorf("add captain: %w", err)
	}
	return fmt.Sprintf("team %s created", team.ID), nil
}
