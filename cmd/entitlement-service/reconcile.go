// cmd/entitlement-service/reconcile.go
package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer a.close()

		report, runErr := a.reconciler.Reconcile(ctx, reconcilesubscriptions.TriggerCLI)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		return runErr
	},
}
