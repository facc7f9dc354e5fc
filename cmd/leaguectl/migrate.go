package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codr1/leagueoffice/internal/db"
)

func migrateCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded schema migrations",
	}
	for _, direction := range []string{"up", "down", "version"} {
		cmd.AddCommand(migrateDirectionCmd(load, direction))
	}
	return cmd
}

func migrateDirectionCmd(load configLoader, direction string) *cobra.Command {
	short := map[string]string{
		"up":      "Apply all pending migrations",
		"down":    "Roll back every migration",
		"version": "Print the applied schema version",
	}[direction]

	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cfg.Database.Filename)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			version, err := db.Migrate(sqlDB, direction)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %v\n", version.Version, version.Dirty)
			return nil
		},
	}
}
