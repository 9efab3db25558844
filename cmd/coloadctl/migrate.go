package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coload/internal/config"
	"coload/internal/infra"
)

var migrationPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := infra.ApplyMigration(ctx, db, migrationPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", migrationPath)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationPath, "file", infra.DefaultMigration, "Migration SQL path")
}
