package commands

// Command to run the multi-subject token watcher
// Polls each registered subject's pool for new buyers and pays out winners
// Implements graceful shutdown for proper termination

import (
	"clutch-protocol/bots_monitor"
	"clutch-protocol/internal/registry"

	"github.com/spf13/cobra"
)

var watcherCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Run the multi-wallet token watcher",
	Long:  `Poll every registered wallet's token pool for new buyers and trigger payouts for qualifying holders.`,
	RunE:  runWatcher,
}

func runWatcher(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}

	store := registry.NewStore(d.cfg.Watcher.UsersFile)
	monitor := bots_monitor.NewWatcherMonitor(d.cfg, d.client, store, d.engine, d.evaluator, d.executor, d.bot)

	return runMonitors("Token watcher", monitor.Run)
}
