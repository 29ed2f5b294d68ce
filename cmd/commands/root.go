package commands

// Root command for Cobra CLI
// Defines the main command structure of the application
// Registers all subcommands (watcher, clutch, caller, bot, buyburn)

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clutch",
	Short: "Clutch Protocol - Solana transfer watcher with winner payouts",
	Long: `Clutch Protocol watches Solana accounts and token pools for qualifying
transfers, pays out winners from registered wallets, and announces results
through Telegram channels.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config overrides. The config layer reads these from os.Args itself;
	// they are declared here so cobra accepts them and lists them in help.
	rootCmd.PersistentFlags().String("rpc-endpoint", "", "Solana RPC endpoint URL")
	rootCmd.PersistentFlags().String("users-file", "", "path to the users.json registry")
	rootCmd.PersistentFlags().Float64("token-threshold", 0, "minimum token balance to qualify")

	rootCmd.AddCommand(watcherCmd)
	rootCmd.AddCommand(clutchCmd)
	rootCmd.AddCommand(callerCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(buyburnCmd)
}
