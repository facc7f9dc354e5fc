// cmd/leaguectl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/leagueoffice/internal/config"
	"github.com/codr1/leagueoffice/internal/db"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "leaguectl",
		Short:         "Operator tooling for the league office payments service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/app.yaml", "path to the yaml configuration file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(outcomesCmd(load))
	rootCmd.AddCommand(opsCmd(load))
	return rootCmd
}

type configLoader func() (*config.Config, error)

// openDatabase opens the configured database with migrations applied.
func openDatabase(load configLoader) (*db.DB, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return db.NewFromConfig(cfg)
}
