package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/codr1/leagueoffice/internal/api/authz"
	"github.com/codr1/leagueoffice/internal/db"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/payments"
	"github.com/codr1/leagueoffice/internal/testutil"
)

type approvingGateway struct{}

func (approvingGateway) CreatePayment(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	return &gateway.Charge{
		ID:          "pi_" + req.IdempotencyKey,
		Status:      gateway.StatusCompleted,
		RawStatus:   "succeeded",
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}, nil
}

func (approvingGateway) GetPayment(ctx context.Context, externalID string) (*gateway.Charge, error) {
	return nil, gateway.ErrGatewayUnavailable
}

type teamsEnv struct {
	db      *db.DB
	service *payments.Service
	handler *Handler
}

func newTeamsEnv(t *testing.T) teamsEnv {
	t.Helper()
	database := testutil.NewTestDB(t)
	svc := payments.NewService(database, approvingGateway{}, fulfillment.NewProcessor(database, 5), payments.Options{Currency: "USD"})
	testutil.InsertTeam(t, database, "T1", "Night Owls", "C1", "P1", "P2")
	return teamsEnv{db: database, service: svc, handler: NewHandler(database, svc)}
}

var (
	captain = &authz.AuthUser{ID: "C1", Role: authz.RolePlayer, Email: "captain@example.com"}
	member  = &authz.AuthUser{ID: "P1", Role: authz.RolePlayer}
	admin   = &authz.AuthUser{ID: "A1", Role: authz.RoleAdmin}
	outside = &authz.AuthUser{ID: "X9", Role: authz.RolePlayer}
)

func newRequest(t *testing.T, method, target string, body any, user *authz.AuthUser) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}
	return req
}

func TestHandleGetTeam(t *testing.T) {
	env := newTeamsEnv(t)

	tests := []struct {
		name       string
		teamID     string
		wantStatus int
	}{
		{name: "existing team", teamID: "T1", wantStatus: http.StatusOK},
		{name: "unknown team", teamID: "T404", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, http.MethodGet, "/api/v1/teams/"+tt.teamID, nil, member)
			req.SetPathValue("id", tt.teamID)
			recorder := httptest.NewRecorder()

			env.handler.HandleGetTeam(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var payload struct {
				Team teamResponse `json:"team"`
			}
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Team.Name != "Night Owls" || len(payload.Team.Players) != 3 {
				t.Fatalf("unexpected team: %+v", payload.Team)
			}
			if payload.Team.CaptainID == nil || *payload.Team.CaptainID != "C1" {
				t.Fatalf("captain = %v, want C1", payload.Team.CaptainID)
			}
		})
	}
}

func TestHandleCreateChangeRequest(t *testing.T) {
	tests := []struct {
		name       string
		user       *authz.AuthUser
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "captain rebrands",
			user:       captain,
			body:       map[string]any{"type": "team_rebrand", "amount": "15.00", "details": map[string]any{"newName": "Early Birds"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "admin transfers",
			user:       admin,
			body:       map[string]any{"type": "team_transfer", "amount": "25.00", "details": map[string]any{"new_captain_id": "P2"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "player changes own online id",
			user:       member,
			body:       map[string]any{"type": "online_id_change", "amount": "5.00", "details": map[string]any{"playerId": "P1", "onlineId": "owl#1"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "player cannot change another online id",
			user:       member,
			body:       map[string]any{"type": "online_id_change", "amount": "5.00", "details": map[string]any{"playerId": "P2", "onlineId": "owl#2"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "outsider cannot rebrand",
			user:       outside,
			body:       map[string]any{"type": "team_rebrand", "amount": "15.00", "details": map[string]any{"newName": "Stolen"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing detail",
			user:       captain,
			body:       map[string]any{"type": "team_rebrand", "amount": "15.00"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported type",
			user:       captain,
			body:       map[string]any{"type": "team_creation", "amount": "15.00"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid amount",
			user:       captain,
			body:       map[string]any{"type": "team_rebrand", "amount": "0", "details": map[string]any{"newName": "Zero"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "anonymous",
			body:       map[string]any{"type": "team_rebrand", "amount": "15.00", "details": map[string]any{"newName": "Anon"}},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTeamsEnv(t)
			req := newRequest(t, http.MethodPost, "/api/v1/teams/T1/change-requests", tt.body, tt.user)
			req.SetPathValue("id", "T1")
			recorder := httptest.NewRecorder()

			env.handler.HandleCreateChangeRequest(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}

			var count int
			if err := env.db.QueryRowContext(context.Background(),
				`SELECT COUNT(*) FROM team_change_requests`).Scan(&count); err != nil {
				t.Fatalf("count change requests: %v", err)
			}
			want := 0
			if tt.wantStatus == http.StatusCreated {
				want = 1
			}
			if count != want {
				t.Fatalf("change requests = %d, want %d", count, want)
			}
		})
	}
}

func TestChangeRequestAppliedAfterPayment(t *testing.T) {
	env := newTeamsEnv(t)
	ctx := context.Background()

	req := newRequest(t, http.MethodPost, "/api/v1/teams/T1/change-requests", map[string]any{
		"type":    "team_rebrand",
		"amount":  "15.00",
		"details": map[string]any{"newName": "Early Birds"},
	}, captain)
	req.SetPathValue("id", "T1")
	recorder := httptest.NewRecorder()
	env.handler.HandleCreateChangeRequest(recorder, req)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var created pendingPaymentResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ChangeRequest == nil || created.ChangeRequest.Status != "pending" {
		t.Fatalf("unexpected change request: %+v", created.ChangeRequest)
	}

	result, err := env.service.Submit(ctx, payments.SubmitParams{
		SourceID:       "tok_visa",
		Amount:         decimal.RequireFromString("15.00"),
		IdempotencyKey: created.IdempotencyKey,
		PayerID:        captain.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Payment.ID != created.Payment.ID {
		t.Fatalf("submitted payment %s, want %s", result.Payment.ID, created.Payment.ID)
	}

	team, err := env.db.Queries.GetTeam(ctx, "T1")
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if team.Name != "Early Birds" {
		t.Fatalf("team name = %q, want Early Birds", team.Name)
	}
	var status string
	if err := env.db.QueryRowContext(ctx,
		`SELECT status FROM team_change_requests WHERE id = ?`, created.ChangeRequest.ID).Scan(&status); err != nil {
		t.Fatalf("load change request: %v", err)
	}
	if status != "approved" {
		t.Fatalf("change request status = %q, want approved", status)
	}
}

func TestHandleCreateRegistration(t *testing.T) {
	env := newTeamsEnv(t)
	body := map[string]any{"kind": "tournament", "eventId": "SPRING-CUP", "teamId": "T1", "amount": "40.00"}

	first := newRequest(t, http.MethodPost, "/api/v1/registrations", body, captain)
	recorder := httptest.NewRecorder()
	env.handler.HandleCreateRegistration(recorder, first)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	var created pendingPaymentResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Registration == nil || created.Registration.PaymentStatus != "unpaid" {
		t.Fatalf("unexpected registration: %+v", created.Registration)
	}

	duplicate := newRequest(t, http.MethodPost, "/api/v1/registrations", body, captain)
	recorder = httptest.NewRecorder()
	env.handler.HandleCreateRegistration(recorder, duplicate)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409: %s", recorder.Code, recorder.Body.String())
	}

	var paymentCount int
	if err := env.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM payments`).Scan(&paymentCount); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if paymentCount != 1 {
		t.Fatalf("payments = %d, want 1 after rolled back duplicate", paymentCount)
	}
}

func TestHandleCreateRegistrationValidation(t *testing.T) {
	tests := []struct {
		name       string
		user       *authz.AuthUser
		body       map[string]any
		wantStatus int
	}{
		{name: "bad kind", user: captain, body: map[string]any{"kind": "cup", "eventId": "E1", "teamId": "T1", "amount": "10"}, wantStatus: http.StatusBadRequest},
		{name: "missing event", user: captain, body: map[string]any{"kind": "league", "teamId": "T1", "amount": "10"}, wantStatus: http.StatusBadRequest},
		{name: "unknown team", user: captain, body: map[string]any{"kind": "league", "eventId": "E1", "teamId": "T404", "amount": "10"}, wantStatus: http.StatusNotFound},
		{name: "not captain", user: member, body: map[string]any{"kind": "league", "eventId": "E1", "teamId": "T1", "amount": "10"}, wantStatus: http.StatusForbidden},
		{name: "unknown field", user: captain, body: map[string]any{"kind": "league", "eventId": "E1", "teamId": "T1", "amount": "10", "extra": true}, wantStatus: http.StatusBadRequest},
		{name: "league by admin", user: admin, body: map[string]any{"kind": "league", "eventId": "E1", "teamId": "T1", "amount": "10"}, wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTeamsEnv(t)
			req := newRequest(t, http.MethodPost, "/api/v1/registrations", tt.body, tt.user)
			recorder := httptest.NewRecorder()

			env.handler.HandleCreateRegistration(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
		})
	}
}
