package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openMigrated(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
