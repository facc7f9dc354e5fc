package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codr1/leagueoffice/internal/api/auth"
	"github.com/codr1/leagueoffice/internal/api/authz"
)

func opsCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Credentials for operators",
	}
	cmd.AddCommand(hashKeyCmd())
	cmd.AddCommand(issueTokenCmd(load))
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to put in OPS_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashOpsKey(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func issueTokenCmd(load configLoader) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token <user-id>",
		Short: "Sign an access token with AUTH_JWT_SECRET, for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			if role != authz.RoleAdmin && role != authz.RolePlayer {
				return fmt.Errorf("role must be %s or %s", authz.RoleAdmin, authz.RolePlayer)
			}
			token, err := auth.NewAuthenticator(cfg.Auth).IssueToken(args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", authz.RolePlayer, "admin or player")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
