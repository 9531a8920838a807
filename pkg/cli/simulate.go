package cli

import (
	"github.com/platinummonkey/subledger/pkg/api"
	"github.com/spf13/cobra"
)

func newSimulateCommand(opts *options) *cobra.Command {
	var (
		subscriptionID   string
		maxSubscriptions int
		maxPeriods       int
		dryRun           bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run billing advancement on due subscriptions",
		Long: `Advance every ACTIVE subscription whose period has ended, writing one
billing event per elapsed period. With --dry-run nothing is written and the
report shows what would happen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}

			req := &api.SimulateBillingRequest{DryRun: dryRun}
			if cmd.Flags().Changed("subscription") {
				req.SubscriptionID = &subscriptionID
			}
			if cmd.Flags().Changed("max-subscriptions") {
				req.MaxSubscriptions = &maxSubscriptions
			}
			if cmd.Flags().Changed("max-periods") {
				req.MaxPeriodsPerSubscription = &maxPeriods
			}

			resp, err := opts.client().Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return p.print(resp)
		},
	}

	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "Only advance this subscription")
	cmd.Flags().IntVar(&maxSubscriptions, "max-subscriptions", 0, "Maximum subscriptions to process (server default when unset)")
	cmd.Flags().IntVar(&maxPeriods, "max-periods", 0, "Maximum periods per subscription (server default when unset)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without writing")

	return cmd
}
