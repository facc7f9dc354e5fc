package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/leagueoffice/internal/config"
)

const (
	ReconciliationJobName   = "payment_reconciliation"
	FulfillmentRetryJobName = "fulfillment_retry"
	LedgerCleanupJobName    = "webhook_ledger_cleanup"

	jobTimeout   = 2 * time.Minute
	jobBatchSize = 100
)

// Reconciler refreshes stale pending card payments from the gateway.
type Reconciler interface {
	Reconcile(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

// FulfillmentRetrier retries failed fulfillment outcomes.
type FulfillmentRetrier interface {
	RetryFailed(ctx context.Context, staleBefore time.Time, limit int) (int, error)
}

// LedgerPruner deletes old processed webhook events.
type LedgerPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Jobs holds the collaborators the background jobs run against. A nil
// collaborator leaves its job unregistered.
type Jobs struct {
	Payments    Reconciler
	Fulfillment FulfillmentRetrier
	Ledger      LedgerPruner
	Config      config.JobsConfig
	Now         func() time.Time
}

// RegisterJobs adds the reconciliation, fulfillment retry and ledger cleanup
// jobs to the scheduler.
func RegisterJobs(s *Service, jobs Jobs) error {
	if jobs.Now == nil {
		jobs.Now = time.Now
	}

	if jobs.Payments != nil {
		if err := register(s, ReconciliationJobName, jobs.Config.ReconciliationCron, jobs.reconcile); err != nil {
			return err
		}
	}
	if jobs.Fulfillment != nil {
		if err := register(s, FulfillmentRetryJobName, jobs.Config.FulfillmentRetryCron, jobs.retryFulfillment); err != nil {
			return err
		}
	}
	if jobs.Ledger != nil {
		if err := register(s, LedgerCleanupJobName, jobs.Config.LedgerCleanupCron, jobs.pruneLedger); err != nil {
			return err
		}
	}
	return nil
}

func register(s *Service, name, cronExpr string, run func(context.Context) error) error {
	jobLogger := log.With().
		Str("component", name+"_job").
		Str("job_name", name).
		Str("cron", cronExpr).
		Logger()

	_, err := s.AddJob(name, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if err := run(ctx); err != nil {
			jobLogger.Error().Err(err).Msg("Scheduler job failed")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("add %s job: %w", name, err)
	}
	return nil
}

func (j Jobs) reconcile(ctx context.Context) error {
	cutoff := j.Now().Add(-minutes(j.Config.StalePaymentMinutes))
	resolved, err := j.Payments.Reconcile(ctx, cutoff, jobBatchSize)
	if err != nil {
		return fmt.Errorf("reconcile payments: %w", err)
	}
	logResult(ctx, resolved, "Reconciled stale payments")
	return nil
}

func (j Jobs) retryFulfillment(ctx context.Context) error {
	cutoff := j.Now().Add(-minutes(j.Config.StaleOutcomeMinutes))
	applied, err := j.Fulfillment.RetryFailed(ctx, cutoff, jobBatchSize)
	if err != nil {
		return fmt.Errorf("retry fulfillment: %w", err)
	}
	logResult(ctx, applied, "Retried failed fulfillment")
	return nil
}

func (j Jobs) pruneLedger(ctx context.Context) error {
	cutoff := j.Now().AddDate(0, 0, -j.Config.LedgerRetentionDays)
	deleted, err := j.Ledger.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune webhook ledger: %w", err)
	}
	logResult(ctx, int(deleted), "Pruned webhook ledger")
	return nil
}

func logResult(ctx context.Context, count int, msg string) {
	level := zerolog.DebugLevel
	if count > 0 {
		level = zerolog.InfoLevel
	}
	log.Ctx(ctx).WithLevel(level).Int("count", count).Msg(msg)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
