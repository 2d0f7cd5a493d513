package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/josepablo-design/marketplace/internal/bootstrap"
)

func refundCmd(opts *globalOpts) *cobra.Command {
	var amountFlag string
	cmd := &cobra.Command{
		Use:   "refund <orderId>",
		Short: "Ask the processor to refund a paid order",
		Long: `Starts a refund for the order's payment intent. The order is cancelled and the
product relisted when the processor's charge.refunded webhook arrives.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount *decimal.Decimal
			if amountFlag != "" {
				d, err := decimal.NewFromString(amountFlag)
				if err != nil {
					return fmt.Errorf("--amount %q: %w", amountFlag, err)
				}
				amount = &d
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, cleanup, err := bootstrap.Init(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := a.OrderSvc.Refund(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refund %s for %s: %d %s (%s)\n", rec.ID, rec.IntentID, rec.Amount, rec.Currency, rec.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&amountFlag, "amount", "", "partial amount in major units (default: full amount)")
	return cmd
}
