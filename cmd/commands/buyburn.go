package commands

// Command to run the buy-burn monitor
// Buys and burns the configured token when trading volume clears the floor
// Implements graceful shutdown for proper termination

import (
	"clutch-protocol/bots_monitor"
	"clutch-protocol/internal/clients_api/dexscreener"
	"clutch-protocol/internal/clients_api/pumpportal"

	"github.com/spf13/cobra"
)

var buyburnCmd = &cobra.Command{
	Use:   "buyburn",
	Short: "Run the buy and burn monitor",
	Long:  `Check recent trading volume on a randomized interval, buy the token when volume is high enough, and burn the purchase.`,
	RunE:  runBuyBurn,
}

func runBuyBurn(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}

	trade := pumpportal.NewClient(d.cfg.Payout.TradeEndpoint)
	dex := dexscreener.NewClient()

	monitor, err := bots_monitor.NewBuyBurnMonitor(d.cfg, d.client, trade, dex, d.bot)
	if err != nil {
		return err
	}

	return runMonitors("Buy-burn monitor", monitor.Run)
}
