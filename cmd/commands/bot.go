package commands

// Command to run the Telegram registration bot
// Collects wallet registrations and manages the subject registry
// Implements graceful shutdown for proper termination

import (
	"fmt"

	"clutch-protocol/bots_monitor"
	"clutch-protocol/internal/registry"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram registration bot",
	Long:  `Accept wallet registrations through Telegram and manage the watched subject registry.`,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	if d.bot == nil {
		return fmt.Errorf("registration bot requires TELEGRAM_BOT_TOKEN")
	}

	store := registry.NewStore(d.cfg.Watcher.UsersFile)
	bot := bots_monitor.NewRegistrationBot(d.cfg, store, d.bot)

	return runMonitors("Registration bot", bot.Run)
}
