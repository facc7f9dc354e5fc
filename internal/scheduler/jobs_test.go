package scheduler

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/codr1/leagueoffice/internal/config"
)

type fakeReconciler struct {
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	f.cutoff, f.limit = createdBefore, limit
	return 2, f.err
}

type fakeRetrier struct {
	cutoff time.Time
}

func (f *fakeRetrier) RetryFailed(ctx context.Context, staleBefore time.Time, limit int) (int, error) {
	f.cutoff = staleBefore
	return 1, nil
}

type fakePruner struct {
	cutoff time.Time
}

func (f *fakePruner) Prune(ctx context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return 3, nil
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		ReconciliationCron:   "*/10 * * * *",
		FulfillmentRetryCron: "*/5 * * * *",
		LedgerCleanupCron:    "0 3 * * *",
		StalePaymentMinutes:  15,
		StaleOutcomeMinutes:  10,
		LedgerRetentionDays:  30,
	}
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func jobNames(svc *Service) []string {
	var names []string
	for _, job := range svc.Jobs() {
		names = append(names, job.Name())
	}
	sort.Strings(names)
	return names
}

func TestRegisterJobs(t *testing.T) {
	tests := []struct {
		name string
		jobs Jobs
		want []string
	}{
		{
			name: "all collaborators",
			jobs: Jobs{Payments: &fakeReconciler{}, Fulfillment: &fakeRetrier{}, Ledger: &fakePruner{}},
			want: []string{FulfillmentRetryJobName, ReconciliationJobName, LedgerCleanupJobName},
		},
		{
			name: "ledger only",
			jobs: Jobs{Ledger: &fakePruner{}},
			want: []string{LedgerCleanupJobName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t)
			tt.jobs.Config = testJobsConfig()
			if err := RegisterJobs(svc, tt.jobs); err != nil {
				t.Fatalf("register jobs: %v", err)
			}
			got := jobNames(svc)
			sort.Strings(tt.want)
			if len(got) != len(tt.want) {
				t.Fatalf("jobs = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("jobs = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRegisterJobsRejectsBadCron(t *testing.T) {
	svc := newService(t)
	cfg := testJobsConfig()
	cfg.ReconciliationCron = "not a cron"

	if err := RegisterJobs(svc, Jobs{Payments: &fakeReconciler{}, Config: cfg}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestAddJobValidation(t *testing.T) {
	svc := newService(t)
	if _, err := svc.AddJob("", "* * * * *", func() {}); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddJob("job", " ", func() {}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}

	var nilService *Service
	if _, err := nilService.AddJob("job", "* * * * *", func() {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestJobCutoffs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reconciler := &fakeReconciler{}
	retrier := &fakeRetrier{}
	pruner := &fakePruner{}
	jobs := Jobs{
		Payments:    reconciler,
		Fulfillment: retrier,
		Ledger:      pruner,
		Config:      testJobsConfig(),
		Now:         func() time.Time { return now },
	}
	ctx := context.Background()

	if err := jobs.reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := jobs.retryFulfillment(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := jobs.pruneLedger(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if want := now.Add(-15 * time.Minute); !reconciler.cutoff.Equal(want) {
		t.Fatalf("reconcile cutoff = %v, want %v", reconciler.cutoff, want)
	}
	if reconciler.limit != jobBatchSize {
		t.Fatalf("reconcile limit = %d, want %d", reconciler.limit, jobBatchSize)
	}
	if want := now.Add(-10 * time.Minute); !retrier.cutoff.Equal(want) {
		t.Fatalf("retry cutoff = %v, want %v", retrier.cutoff, want)
	}
	if want := now.AddDate(0, 0, -30); !pruner.cutoff.Equal(want) {
		t.Fatalf("prune cutoff = %v, want %v", pruner.cutoff, want)
	}
}

func TestReconcileErrorIsReturned(t *testing.T) {
	jobs := Jobs{
		Payments: &fakeReconciler{err: errors.New("gateway down")},
		Config:   testJobsConfig(),
		Now:      time.Now,
	}
	if err := jobs.reconcile(context.Background()); err == nil {
		t.Fatal("expected reconcile error")
	}
}
