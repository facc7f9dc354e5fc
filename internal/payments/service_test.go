package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	dbgen "github.com/codr1/leagueoffice/internal/db/generated"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/testutil"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.ChargeRequest
	charge   *gateway.Charge
	err      error
	lookups  map[string]*gateway.Charge
}

func (f *fakeGateway) CreatePayment(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.charge, nil
}

func (f *fakeGateway) GetPayment(ctx context.Context, externalID string) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if charge, ok := f.lookups[externalID]; ok {
		return charge, nil
	}
	return nil, gateway.ErrGatewayUnavailable
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeFulfiller struct {
	mu        sync.Mutex
	processed []string
	err       error
}

func (f *fakeFulfiller) Process(ctx context.Context, payment dbgen.Payment) (fulfillment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, payment.ID)
	return fulfillment.Result{PaymentID: payment.ID}, f.err
}

func completedCharge(id string, cents int64) *gateway.Charge {
	return &gateway.Charge{
		ID:          id,
		Status:      gateway.StatusCompleted,
		RawStatus:   "succeeded",
		AmountCents: cents,
		Currency:    "USD",
		ReceiptURL:  "https://pay.example/receipt/" + id,
		CardBrand:   "visa",
		CardLast4:   "4242",
	}
}

func newTestService(t *testing.T, gw *fakeGateway, ff *fakeFulfiller) *Service {
	t.Helper()
	return NewService(testutil.NewTestDB(t), gw, ff, Options{Currency: "usd"})
}

func TestSubmitCompletesPaymentAndFulfills(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{charge: completedCharge("pi_1", 2500)}
	ff := &fakeFulfiller{}
	svc := newTestService(t, gw, ff)

	intent, err := svc.CreateIntent(ctx, IntentParams{
		Amount:   decimal.RequireFromString("25.00"),
		PayerID:  "P2",
		Metadata: map[string]any{"event_type": "team_transfer", "team_id": "T1", "playerId": "P2", "cvv": "123"},
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Metadata != `{"event_type":"team_transfer","playerId":"P2","team_id":"T1"}` {
		t.Fatalf("expected sanitized metadata, got %s", intent.Metadata)
	}

	result, err := svc.Submit(ctx, SubmitParams{
		SourceID:       "pm_card_visa",
		Amount:         decimal.RequireFromString("25"),
		IdempotencyKey: intent.IdempotencyKey,
		PayerID:        "P2",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Payment.ID != intent.ID || result.Payment.Status != StatusCompleted {
		t.Fatalf("expected intent to complete, got %+v", result.Payment)
	}
	if result.Payment.ExternalPaymentID.String != "pi_1" {
		t.Fatalf("expected external id pi_1, got %q", result.Payment.ExternalPaymentID.String)
	}
	if got := gw.requests[0]; got.IdempotencyKey != intent.IdempotencyKey || got.ReferenceID != intent.ID || got.AmountCents != 2500 || got.Currency != "USD" {
		t.Fatalf("unexpected gateway request: %+v", got)
	}
	if len(ff.processed) != 1 || ff.processed[0] != intent.ID {
		t.Fatalf("expected fulfillment for %s, got %v", intent.ID, ff.processed)
	}
	meta, ok := svc.Receipt(ctx, intent.ID)
	if !ok || meta.ReceiptUrl.String != "https://pay.example/receipt/pi_1" || meta.CardLast4.String != "4242" {
		t.Fatalf("unexpected receipt metadata: %+v", meta)
	}

	// Resubmitting a completed payment must not charge again.
	again, err := svc.Submit(ctx, SubmitParams{
		SourceID:       "pm_card_visa",
		Amount:         decimal.RequireFromString("25.00"),
		IdempotencyKey: intent.IdempotencyKey,
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.Charge != nil || again.Payment.Status != StatusCompleted || gw.calls() != 1 {
		t.Fatalf("expected completed payment without a second charge, got %+v (calls %d)", again, gw.calls())
	}
}

func TestSubmitWithoutKeyCreatesPayment(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{charge: completedCharge("pi_2", 1000)}
	svc := newTestService(t, gw, &fakeFulfiller{})

	result, err := svc.Submit(ctx, SubmitParams{SourceID: "pm_1", Amount: decimal.RequireFromString("10.00"), Note: "dues"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Payment.IdempotencyKey == "" || result.Payment.Status != StatusCompleted || result.Payment.Note.String != "dues" {
		t.Fatalf("unexpected payment: %+v", result.Payment)
	}
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		fixture testutil.PaymentFixture
		amount  string
		wantErr error
	}{
		{
			name:    "amount mismatch",
			fixture: testutil.PaymentFixture{IdempotencyKey: "key-1", AmountCents: 2500},
			amount:  "30.00",
			wantErr: ErrIdempotencyConflict,
		},
		{
			name:    "failed payment",
			fixture: testutil.PaymentFixture{IdempotencyKey: "key-1", AmountCents: 2500, Status: "failed"},
			amount:  "25.00",
			wantErr: ErrPaymentClosed,
		},
		{
			name:    "peer payment",
			fixture: testutil.PaymentFixture{IdempotencyKey: "key-1", AmountCents: 2500, Method: "peer_app"},
			amount:  "25.00",
			wantErr: ErrWrongMethod,
		},
		{
			name:    "invalid amount",
			amount:  "10.005",
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := testutil.NewTestDB(t)
			gw := &fakeGateway{charge: completedCharge("pi_x", 2500)}
			svc := NewService(database, gw, &fakeFulfiller{}, Options{})
			if tt.fixture.IdempotencyKey != "" {
				testutil.InsertPayment(t, database, tt.fixture)
			}

			_, err := svc.Submit(ctx, SubmitParams{
				SourceID:       "pm_1",
				Amount:         decimal.RequireFromString(tt.amount),
				IdempotencyKey: tt.fixture.IdempotencyKey,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if gw.calls() != 0 {
				t.Fatalf("gateway must not be called, got %d calls", gw.calls())
			}
		})
	}
}

func TestSubmitDeclineFailsPayment(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: &gateway.DeclineError{
		Code:    "card_declined",
		Message: "Your card was declined.",
		Charge:  &gateway.Charge{ID: "pi_declined", Status: gateway.StatusFailed},
	}}
	ff := &fakeFulfiller{}
	svc := newTestService(t, gw, ff)

	result, err := svc.Submit(ctx, SubmitParams{SourceID: "pm_1", Amount: decimal.RequireFromString("5.00")})
	var decline *gateway.DeclineError
	if !errors.As(err, &decline) {
		t.Fatalf("expected decline, got %v", err)
	}
	if result.Payment.Status != StatusFailed || result.Payment.FailureMessage.String != "Your card was declined." {
		t.Fatalf("expected failed payment with message, got %+v", result.Payment)
	}
	if result.Payment.ExternalPaymentID.String != "pi_declined" {
		t.Fatalf("expected external id recorded, got %q", result.Payment.ExternalPaymentID.String)
	}
	if len(ff.processed) != 0 {
		t.Fatalf("declined payment must not be fulfilled")
	}
}

func TestSubmitGatewayOutageKeepsPaymentPending(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gateway.ErrGatewayUnavailable}
	svc := newTestService(t, gw, &fakeFulfiller{})

	intent, err := svc.CreateIntent(ctx, IntentParams{Amount: decimal.RequireFromString("12.00")})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	_, err = svc.Submit(ctx, SubmitParams{SourceID: "pm_1", Amount: decimal.RequireFromString("12.00"), IdempotencyKey: intent.IdempotencyKey})
	if !errors.Is(err, gateway.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}

	payment, err := svc.Get(ctx, intent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != StatusPending {
		t.Fatalf("expected pending after outage, got %s", payment.Status)
	}

	// The same key can be resubmitted once the gateway recovers.
	gw.mu.Lock()
	gw.err = nil
	gw.charge = completedCharge("pi_3", 1200)
	gw.mu.Unlock()
	result, err := svc.Submit(ctx, SubmitParams{SourceID: "pm_1", Amount: decimal.RequireFromString("12.00"), IdempotencyKey: intent.IdempotencyKey})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if result.Payment.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Payment.Status)
	}
}

func TestSubmitProcessingStaysPending(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{charge: &gateway.Charge{ID: "pi_4", Status: gateway.StatusPending, RawStatus: "processing"}}
	svc := newTestService(t, gw, &fakeFulfiller{})

	result, err := svc.Submit(ctx, SubmitParams{SourceID: "pm_1", Amount: decimal.RequireFromString("8.00")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Payment.Status != StatusPending || result.Payment.ExternalPaymentID.String != "pi_4" {
		t.Fatalf("expected pending with external id, got %+v", result.Payment)
	}
}

func TestVerifyRefreshesPendingPayment(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	gw := &fakeGateway{lookups: map[string]*gateway.Charge{"pi_5": completedCharge("pi_5", 2500)}}
	ff := &fakeFulfiller{}
	svc := NewService(database, gw, ff, Options{})

	payment := testutil.InsertPayment(t, database, testutil.PaymentFixture{ExternalID: "pi_5"})
	verified, err := svc.Verify(ctx, payment.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != StatusCompleted || len(ff.processed) != 1 {
		t.Fatalf("expected completed and fulfilled, got %s (%v)", verified.Status, ff.processed)
	}

	if _, err := svc.Verify(ctx, "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestCompleteIsTerminalAndRefires(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	ff := &fakeFulfiller{}
	svc := NewService(database, &fakeGateway{}, ff, Options{})

	failed := testutil.InsertPayment(t, database, testutil.PaymentFixture{Status: "failed"})
	got, err := svc.ApplyCharge(ctx, failed, completedCharge("pi_6", 2500))
	if err != nil {
		t.Fatalf("apply charge: %v", err)
	}
	if got.Status != StatusFailed || len(ff.processed) != 0 {
		t.Fatalf("failed payment must stay failed, got %s (%v)", got.Status, ff.processed)
	}

	completed := testutil.InsertPayment(t, database, testutil.PaymentFixture{Status: "completed", ExternalID: "pi_7"})
	if _, err := svc.ApplyCharge(ctx, completed, &gateway.Charge{ID: "pi_7", Status: gateway.StatusFailed, RawStatus: "canceled"}); err != nil {
		t.Fatalf("apply charge: %v", err)
	}
	reloaded, _ := svc.Get(ctx, completed.ID)
	if reloaded.Status != StatusCompleted {
		t.Fatalf("completed payment must not fail, got %s", reloaded.Status)
	}

	// A redelivered success re-runs the (idempotent) fulfiller.
	if _, err := svc.ApplyCharge(ctx, completed, completedCharge("pi_7", 2500)); err != nil {
		t.Fatalf("apply charge: %v", err)
	}
	if len(ff.processed) != 1 {
		t.Fatalf("expected fulfiller to be invoked for redelivery, got %v", ff.processed)
	}
}

func TestApplyChargeAmounts(t *testing.T) {
	tests := []struct {
		name        string
		chargeCents int64
		wantStatus  string
		wantMessage string
		wantFulfill bool
	}{
		{name: "exact", chargeCents: 5000, wantStatus: StatusCompleted, wantFulfill: true},
		{name: "amount not reported", chargeCents: 0, wantStatus: StatusCompleted, wantFulfill: true},
		{name: "overcharged", chargeCents: 5500, wantStatus: StatusCompleted, wantFulfill: true},
		{name: "underpaid", chargeCents: 4000, wantStatus: StatusFailed, wantMessage: "paid 40.00, expected 50.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			database := testutil.NewTestDB(t)
			ff := &fakeFulfiller{}
			svc := NewService(database, &fakeGateway{}, ff, Options{})

			payment := testutil.InsertPayment(t, database, testutil.PaymentFixture{AmountCents: 5000})
			got, err := svc.ApplyCharge(ctx, payment, completedCharge("pi_amt", tt.chargeCents))
			if err != nil {
				t.Fatalf("apply charge: %v", err)
			}
			if got.Status != tt.wantStatus || got.FailureMessage.String != tt.wantMessage {
				t.Fatalf("unexpected payment: %+v", got)
			}
			if got.ExternalPaymentID.String != "pi_amt" {
				t.Fatalf("expected external id pi_amt, got %q", got.ExternalPaymentID.String)
			}
			if fulfilled := len(ff.processed) == 1; fulfilled != tt.wantFulfill {
				t.Fatalf("fulfilled = %v, want %v", fulfilled, tt.wantFulfill)
			}
		})
	}
}

func TestCompletePeer(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	svc := NewService(database, &fakeGateway{}, &fakeFulfiller{}, Options{})

	short := testutil.InsertPayment(t, database, testutil.PaymentFixture{Method: "peer_app", AmountCents: 5000})
	got, err := svc.CompletePeer(ctx, short, "venmo-1", 4000)
	if err != nil {
		t.Fatalf("complete peer: %v", err)
	}
	if got.Status != StatusFailed || got.FailureMessage.String != "paid 40.00, expected 50.00" {
		t.Fatalf("expected underpayment to fail, got %+v", got)
	}

	full := testutil.InsertPayment(t, database, testutil.PaymentFixture{Method: "peer_app", AmountCents: 5000})
	got, err = svc.CompletePeer(ctx, full, "venmo-2", 5000)
	if err != nil {
		t.Fatalf("complete peer: %v", err)
	}
	if got.Status != StatusCompleted || got.ExternalPaymentID.String != "venmo-2" {
		t.Fatalf("expected completed, got %+v", got)
	}
}

func TestRecordRefundOnlyLeavesPending(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	svc := NewService(database, &fakeGateway{}, &fakeFulfiller{}, Options{})
	payment := testutil.InsertPayment(t, database, testutil.PaymentFixture{Status: "completed", ExternalID: "pi_8"})

	update := RefundUpdate{ExternalRefundID: "re_1", ExternalPaymentID: "pi_8", AmountCents: 500, Currency: "usd", Status: "pending"}
	if changed, err := svc.RecordRefund(ctx, update); err != nil || !changed {
		t.Fatalf("expected insert, got %v %v", changed, err)
	}
	update.Status = "completed"
	if changed, err := svc.RecordRefund(ctx, update); err != nil || !changed {
		t.Fatalf("expected pending -> completed, got %v %v", changed, err)
	}
	update.Status = "failed"
	if changed, err := svc.RecordRefund(ctx, update); err != nil || changed {
		t.Fatalf("completed refund must not change, got %v %v", changed, err)
	}

	refund, err := database.Queries.GetRefundByExternalID(ctx, "re_1")
	if err != nil {
		t.Fatalf("get refund: %v", err)
	}
	if refund.Status != "completed" || refund.PaymentID.String != payment.ID || refund.Currency != "USD" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
}

func TestReconcileSettlesStalePayments(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	gw := &fakeGateway{lookups: map[string]*gateway.Charge{
		"pi_ok":   completedCharge("pi_ok", 2500),
		"pi_dead": {ID: "pi_dead", Status: gateway.StatusCanceled, RawStatus: "canceled"},
		"pi_wait": {ID: "pi_wait", Status: gateway.StatusPending, RawStatus: "processing"},
	}}
	svc := NewService(database, gw, &fakeFulfiller{}, Options{})

	ok := testutil.InsertPayment(t, database, testutil.PaymentFixture{ExternalID: "pi_ok"})
	dead := testutil.InsertPayment(t, database, testutil.PaymentFixture{ExternalID: "pi_dead"})
	testutil.InsertPayment(t, database, testutil.PaymentFixture{ExternalID: "pi_wait"})
	testutil.InsertPayment(t, database, testutil.PaymentFixture{})

	settled, err := svc.Reconcile(ctx, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if settled != 2 {
		t.Fatalf("expected 2 settled, got %d", settled)
	}
	if got, _ := svc.Get(ctx, ok.ID); got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got, _ := svc.Get(ctx, dead.ID); got.Status != StatusFailed || got.FailureMessage.String != "payment canceled" {
		t.Fatalf("expected failed, got %+v", got)
	}
}
