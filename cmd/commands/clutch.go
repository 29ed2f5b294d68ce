package commands

// Command to run the single-account clutch watcher
// Watches one fixed account for incoming native transfers
// Implements graceful shutdown for proper termination

import (
	"clutch-protocol/bots_monitor"

	"github.com/spf13/cobra"
)

var clutchCmd = &cobra.Command{
	Use:   "clutch",
	Short: "Run the single-account native transfer watcher",
	Long:  `Watch the configured account for incoming native transfers and pay out senders who hold enough of the token.`,
	RunE:  runClutch,
}

func runClutch(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}

	monitor, err := bots_monitor.NewClutchMonitor(d.cfg, d.client, d.engine, d.evaluator, d.executor, d.bot)
	if err != nil {
		return err
	}

	return runMonitors("Clutch watcher", monitor.Run)
}
