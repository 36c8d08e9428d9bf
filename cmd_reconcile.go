package main

import (
	"encoding/json"
	"fmt"
	"os"

	"course-ledger/config"
	"course-ledger/database"
	"course-ledger/internal/app"

	"github.com/spf13/cobra"
)

func newReconcileCommand() *cobra.Command {
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare every wallet balance with its earnings ledger once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			drifts, err := a.Jobs.RunReconcile(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(drifts); err != nil {
				return err
			}
			if failOnDrift && len(drifts) > 0 {
				return fmt.Errorf("%d wallets out of sync with the ledger", len(drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when any wallet drifts")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBURL, cfg.IsProduction())
			if err != nil {
				return err
			}
			defer database.Close(db)
			return database.Migrate(db)
		},
	}
}
