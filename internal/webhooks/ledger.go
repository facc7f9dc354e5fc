package webhooks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/leagueoffice/internal/db"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
)

// ClaimState is the outcome of claiming an event in the ledger.
type ClaimState int

const (
	Claimed ClaimState = iota
	AlreadyProcessed
	InFlight
)

// defaultClaimTimeout is how long a processing claim blocks redeliveries
// before another delivery may take it over.
const defaultClaimTimeout = 10 * time.Minute

// Ledger records processed webhook events keyed by (provider, event id).
type Ledger struct {
	db           *db.DB
	claimTimeout time.Duration
	now          func() time.Time
}

func NewLedger(database *db.DB) *Ledger {
	return &Ledger{
		db:           database,
		claimTimeout: defaultClaimTimeout,
		now:          time.Now,
	}
}

// Claim takes ownership of an event. New and previously failed events are
// claimed; a processing claim older than the claim timeout is taken over.
func (l *Ledger) Claim(ctx context.Context, event Event) (ClaimState, error) {
	now := l.now().UTC()
	rows, err := l.db.Queries.ClaimWebhookEvent(ctx, dbgen.ClaimWebhookEventParams{
		Provider:    event.Provider,
		EventID:     event.ID,
		EventType:   event.Type,
		ClaimedAt:   now,
		StaleBefore: now.Add(-l.claimTimeout),
	})
	if err != nil {
		return InFlight, fmt.Errorf("claim webhook event: %w", err)
	}
	if rows > 0 {
		return Claimed, nil
	}

	existing, err := l.db.Queries.GetWebhookEvent(ctx, dbgen.GetWebhookEventParams{
		Provider: event.Provider,
		EventID:  event.ID,
	})
	if err != nil {
		return InFlight, fmt.Errorf("load webhook event: %w", err)
	}
	if existing.Status == "processed" {
		return AlreadyProcessed, nil
	}
	return InFlight, nil
}

func (l *Ledger) MarkProcessed(ctx context.Context, event Event) error {
	err := l.db.Queries.MarkWebhookEventProcessed(ctx, dbgen.MarkWebhookEventProcessedParams{
		ProcessedAt: sql.NullTime{Time: l.now().UTC(), Valid: true},
		Provider:    event.Provider,
		EventID:     event.ID,
	})
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (l *Ledger) MarkFailed(ctx context.Context, event Event, cause error) error {
	err := l.db.Queries.MarkWebhookEventFailed(ctx, dbgen.MarkWebhookEventFailedParams{
		Error:    sql.NullString{String: cause.Error(), Valid: true},
		Provider: event.Provider,
		EventID:  event.ID,
	})
	if err != nil {
		return fmt.Errorf("mark webhook event failed: %w", err)
	}
	return nil
}

// Prune deletes processed events older than before.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := l.db.Queries.DeleteProcessedWebhookEventsBefore(ctx, sql.NullTime{Time: before.UTC(), Valid: true})
	if err != nil {
		return 0, fmt.Errorf("prune webhook events: %w", err)
	}
	return deleted, nil
}
