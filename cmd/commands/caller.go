package commands

// Command to run the caller monitor
// Posts winner alerts for outgoing payouts from the caller wallet
// Implements graceful shutdown for proper termination

import (
	"clutch-protocol/bots_monitor"

	"github.com/spf13/cobra"
)

var callerCmd = &cobra.Command{
	Use:   "caller",
	Short: "Run the winner alert poster",
	Long:  `Watch the payout wallet for outgoing transfers and post each receiver to the caller channel.`,
	RunE:  runCaller,
}

func runCaller(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}

	monitor, err := bots_monitor.NewCallerMonitor(d.cfg, d.client, d.engine, d.bot)
	if err != nil {
		return err
	}

	return runMonitors("Caller monitor", monitor.Run)
}
