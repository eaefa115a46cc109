package main

import (
	"fmt"

	paymentpg "github.com/dmehra2102/checkout-saga/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/checkout-saga/pkg/config"
	"github.com/dmehra2102/checkout-saga/pkg/database"
	"github.com/spf13/cobra"
)

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the payments and outbox tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Store.DSN == "" {
				return fmt.Errorf("store.dsn is required for migrate")
			}
			pool, err := database.Connect(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := paymentpg.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "payment schema up to date")
			return nil
		},
	}
}
