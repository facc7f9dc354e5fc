package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/leagueoffice/internal/db"
	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// InsertTeam creates a team and its roster. A non-empty captainID is stored as
// the team captain; players join with the player role.
func InsertTeam(t *testing.T, database *db.DB, teamID, name, captainID string, players ...string) {
	t.Helper()

	ctx := context.Background()
	captain := sql.NullString{String: captainID, Valid: captainID != ""}
	if _, err := database.ExecContext(ctx,
		`INSERT INTO teams (id, name, captain_id) VALUES (?, ?, ?)`,
		teamID, name, captain,
	); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	if captainID != "" {
		if _, err := database.ExecContext(ctx,
			`INSERT INTO team_players (team_id, player_id, role) VALUES (?, ?, 'captain')`,
			teamID, captainID,
		); err != nil {
			t.Fatalf("insert captain: %v", err)
		}
	}
	for _, playerID := range players {
		if _, err := database.ExecContext(ctx,
			`INSERT INTO team_players (team_id, player_id, role) VALUES (?, ?, 'player')`,
			teamID, playerID,
		); err != nil {
			t.Fatalf("insert player %s: %v", playerID, err)
		}
	}
}

// RosterRoles returns player_id -> role for a team.
func RosterRoles(t *testing.T, database *db.DB, teamID string) map[string]string {
	t.Helper()

	players, err := database.Queries.ListTeamPlayers(context.Background(), teamID)
	if err != nil {
		t.Fatalf("list team players: %v", err)
	}
	roles := make(map[string]string, len(players))
	for _, p := range players {
		roles[p.PlayerID] = p.Role
	}
	return roles
}

// PaymentFixture describes a payment row for tests. Zero values get defaults:
// a random id and key, 2500 cents, USD, card_processor, pending.
type PaymentFixture struct {
	ID             string
	AmountCents    int64
	Currency       string
	Method         string
	Status         string
	ExternalID     string
	IdempotencyKey string
	PayerEmail     string
	ReferenceID    string
	Metadata       map[string]any
	PaymentDetails map[string]any
}

// InsertPayment creates a payment and moves it to the fixture's status.
func InsertPayment(t *testing.T, database *db.DB, f PaymentFixture) dbgen.Payment {
	t.Helper()

	ctx := context.Background()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.IdempotencyKey == "" {
		f.IdempotencyKey = uuid.NewString()
	}
	if f.AmountCents == 0 {
		f.AmountCents = 2500
	}
	if f.Currency == "" {
		f.Currency = "USD"
	}
	if f.Method == "" {
		f.Method = "card_processor"
	}

	payment, err := database.Queries.CreatePayment(ctx, dbgen.CreatePaymentParams{
		ID:             f.ID,
		AmountCents:    f.AmountCents,
		Currency:       f.Currency,
		Method:         f.Method,
		IdempotencyKey: f.IdempotencyKey,
		PayerEmail:     sql.NullString{String: f.PayerEmail, Valid: f.PayerEmail != ""},
		ReferenceID:    sql.NullString{String: f.ReferenceID, Valid: f.ReferenceID != ""},
		Metadata:       mustJSON(t, f.Metadata),
		PaymentDetails: mustJSON(t, f.PaymentDetails),
	})
	if err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	external := sql.NullString{String: f.ExternalID, Valid: f.ExternalID != ""}
	switch f.Status {
	case "", "pending":
		if external.Valid {
			if _, err := database.Queries.SetPaymentExternalID(ctx, dbgen.SetPaymentExternalIDParams{
				ExternalPaymentID: external,
				ID:                f.ID,
			}); err != nil {
				t.Fatalf("set external id: %v", err)
			}
		}
	case "completed":
		if _, err := database.Queries.CompletePayment(ctx, dbgen.CompletePaymentParams{
			ExternalPaymentID: external,
			CompletedAt:       sql.NullTime{Time: time.Now().UTC(), Valid: true},
			ID:                f.ID,
		}); err != nil {
			t.Fatalf("complete payment: %v", err)
		}
	case "failed":
		if _, err := database.Queries.FailPayment(ctx, dbgen.FailPaymentParams{
			ExternalPaymentID: external,
			FailureMessage:    sql.NullString{String: "declined", Valid: true},
			ID:                f.ID,
		}); err != nil {
			t.Fatalf("fail payment: %v", err)
		}
	default:
		t.Fatalf("unknown payment status %q", f.Status)
	}

	payment, err = database.Queries.GetPayment(ctx, f.ID)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return payment
}

func mustJSON(t *testing.T, v map[string]any) string {
	t.Helper()
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return string(data)
}
