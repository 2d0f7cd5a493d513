package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/josepablo-design/marketplace/internal/bootstrap"
	"github.com/josepablo-design/marketplace/internal/commission"
	domain "github.com/josepablo-design/marketplace/internal/entity"
)

func commissionCmd(opts *globalOpts) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "commission <amount> <category>",
		Short: "Show the fee breakdown the configured rates give for an amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			eng, err := commission.New(bootstrap.CommissionConfig(cfg))
			if err != nil {
				return err
			}
			calc, err := eng.CalculateFloat(amount, domain.SellerCategory(args[1]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(calc)
			}
			fmt.Fprintf(out, "Amount:      %s\n", calc.OrderAmount.StringFixed(2))
			fmt.Fprintf(out, "Rate:        %s\n", calc.CommissionRate.String())
			fmt.Fprintf(out, "Commission:  %s\n", calc.CommissionAmount.StringFixed(2))
			fmt.Fprintf(out, "Payout:      %s\n", calc.SellerPayout.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}
