package cli

import (
	"context"

	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/spf13/cobra"
)

func newSubscriptionCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Inspect and manage subscriptions",
	}

	cmd.AddCommand(subscriptionAction(opts, "get", "Show a subscription with its computed status", (*Client).GetSubscription))
	cmd.AddCommand(subscriptionAction(opts, "cancel", "Cancel an active subscription", (*Client).CancelSubscription))
	cmd.AddCommand(subscriptionAction(opts, "reactivate", "Reactivate a canceled subscription on a fresh period", (*Client).ReactivateSubscription))

	return cmd
}

type subscriptionCall func(c *Client, ctx context.Context, id string) (*subscriptions.View, error)

func subscriptionAction(opts *options, name, short string, call subscriptionCall) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			view, err := call(opts.client(), cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return p.print(view)
		},
	}
}
