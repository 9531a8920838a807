package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// ServerEnv overrides the default server URL
const ServerEnv = "SUBLEDGER_SERVER"

const defaultServer = "http://localhost:8080"

// options are the flags shared by every command
type options struct {
	server  string
	output  string
	timeout time.Duration
}

func (o *options) client() *Client {
	return NewClient(o.server, o.timeout)
}

func (o *options) printer(cmd *cobra.Command) (*printer, error) {
	return newPrinter(o.output, cmd.OutOrStdout())
}

// NewRootCommand creates the subledger-cli command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "subledger-cli",
		Short: "Operate a subledger billing server",
		Long: `subledger-cli talks to a running subledger server over HTTP.

Examples:
  subledger-cli simulate --dry-run
  subledger-cli simulate --subscription <id> --max-periods 3
  subledger-cli subscription get <id> -o yaml
  subledger-cli subscription cancel <id>
  subledger-cli plan get <id> --currency BRL`,
		SilenceUsage: true,
	}

	server := os.Getenv(ServerEnv)
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "Server base URL (env "+ServerEnv+")")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", FormatJSON, "Output format: json or yaml")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(newSimulateCommand(opts))
	root.AddCommand(newSubscriptionCommand(opts))
	root.AddCommand(newPlanCommand(opts))

	return root
}
