package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newPlanCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect plans",
	}

	var currency string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a plan, optionally priced in another currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			view, err := opts.client().GetPlan(cmd.Context(), args[0], strings.ToUpper(currency))
			if err != nil {
				return err
			}
			return p.print(view)
		},
	}
	get.Flags().StringVar(&currency, "currency", "", "Convert the price into this currency (USD or BRL)")

	cmd.AddCommand(get)
	return cmd
}
