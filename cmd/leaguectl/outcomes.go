package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codr1/leagueoffice/internal/api/admin"
	"github.com/codr1/leagueoffice/internal/db"
	"github.com/codr1/leagueoffice/internal/fulfillment"
)

func outcomesCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Inspect and retry payment fulfillment outcomes",
	}
	cmd.AddCommand(outcomesListCmd(load))
	cmd.AddCommand(outcomesRetryCmd(load))
	return cmd
}

func outcomesListCmd(load configLoader) *cobra.Command {
	var (
		status string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outcomes by status (default failed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(load)
			if err != nil {
				return err
			}
			defer database.Close()
			return listOutcomes(cmd.Context(), cmd.OutOrStdout(), database, status, limit, asJSON)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "failed", "processing, applied, skipped or failed")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum outcomes to list")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func outcomesRetryCmd(load configLoader) *cobra.Command {
	var maxAttempts int
	cmd := &cobra.Command{
		Use:   "retry <payment-id>",
		Short: "Re-run fulfillment for a payment whose outcome failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			database, err := db.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if maxAttempts <= 0 {
				maxAttempts = cfg.Jobs.MaxFulfillmentRetries
			}
			return retryOutcome(cmd.Context(), cmd.OutOrStdout(), database, args[0], maxAttempts)
		},
	}
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt limit recorded on linked change requests (default from config)")
	return cmd
}

func listOutcomes(ctx context.Context, out io.Writer, database *db.DB, rawStatus string, limit int, asJSON bool) error {
	status, err := admin.ParseOutcomeStatus(rawStatus)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	outcomes, err := fulfillment.NewProcessor(database, 1).ListOutcomes(ctx, status, limit)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	views := make([]admin.OutcomeView, 0, len(outcomes))
	for _, outcome := range outcomes {
		views = append(views, admin.NewOutcomeView(outcome))
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYMENT\tACTION\tSTATUS\tATTEMPTS\tUPDATED\tDETAIL")
	for _, v := range views {
		detail := ""
		if v.Detail != nil {
			detail = *v.Detail
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			v.PaymentID, v.Action, v.Status, v.Attempts, v.UpdatedAt.Format(time.RFC3339), detail)
	}
	return tw.Flush()
}

func retryOutcome(ctx context.Context, out io.Writer, database *db.DB, paymentID string, maxAttempts int) error {
	result, err := fulfillment.NewProcessor(database, maxAttempts).Retry(ctx, paymentID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("payment %s not found", paymentID)
	case errors.Is(err, fulfillment.ErrNotRetryable):
		return fmt.Errorf("payment %s: outcome is %s and cannot be retried", paymentID, result.Status)
	default:
		return err
	}
	fmt.Fprintf(out, "%s: %s %s", paymentID, result.Action, result.Status)
	if result.Detail != "" {
		fmt.Fprintf(out, " (%s)", result.Detail)
	}
	fmt.Fprintln(out)
	return nil
}
