package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josepablo-design/marketplace/internal/adapter/observ"
	"github.com/josepablo-design/marketplace/internal/bootstrap"
)

func reconcileCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep over stale pending orders",
		Long: `Checks every pending order older than reconcile.stale_after against the
payment processor: succeeded intents are marked paid, abandoned ones cancelled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, cleanup, err := bootstrap.Init(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := a.Reconciler.Run(cmd.Context())
			if err != nil {
				return err
			}
			observ.ReconcileReport(rep.Paid, rep.Cancelled, rep.Skipped, rep.Failed)
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d paid=%d cancelled=%d skipped=%d failed=%d\n",
				rep.Scanned, rep.Paid, rep.Cancelled, rep.Skipped, rep.Failed)
			if rep.Failed > 0 {
				return fmt.Errorf("%d orders could not be reconciled; see logs", rep.Failed)
			}
			return nil
		},
	}
}
