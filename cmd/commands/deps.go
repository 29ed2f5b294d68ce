package commands

// Shared wiring for subcommands: config load, RPC client, qualification
// engine, payout executor, Telegram bot. Each command picks what it needs.

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clutch-protocol/internal/clients_api/pumpportal"
	"clutch-protocol/internal/config"
	"clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/ledger"
	"clutch-protocol/internal/payout"
	"clutch-protocol/internal/watch"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type deps struct {
	cfg       *config.Config
	client    *ledger.Client
	engine    *watch.Engine
	evaluator *watch.Evaluator
	executor  *payout.Executor
	bot       *tgbotapi.BotAPI
}

func buildDeps() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	client := ledger.NewClient(cfg.RPC)

	engine, err := watch.NewEngine(cfg.Watcher.TokenThreshold, cfg.Watcher.StateFile, func() int64 {
		return time.Now().Unix()
	})
	if err != nil {
		return nil, err
	}

	trade := pumpportal.NewClient(cfg.Payout.TradeEndpoint)
	executor := payout.NewExecutor(trade, client, cfg.Payout.PriorityFee,
		time.Duration(cfg.Payout.StepDelayMS)*time.Millisecond)

	d := &deps{
		cfg:       cfg,
		client:    client,
		engine:    engine,
		evaluator: watch.NewEvaluator(client),
		executor:  executor,
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.LogWarn("Failed to initialize Telegram bot (continuing without it)", zap.Error(err))
		} else {
			log.LogSuccess("Telegram bot authorized", zap.String("username", bot.Self.UserName))
			d.bot = bot
		}
	} else {
		log.LogWarn("TELEGRAM_BOT_TOKEN not provided, notifications disabled")
	}

	return d, nil
}

// runMonitors runs the given monitor loops until SIGINT/SIGTERM, then waits
// up to ten seconds for them to drain.
func runMonitors(name string, monitors ...func(context.Context)) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		watch.FanOut(ctx, monitors, func(ctx context.Context, run func(context.Context)) {
			run(ctx)
		})
		close(done)
	}()

	log.LogSuccess(name+" is running", zap.String("status", "active"))

	<-ctx.Done()
	log.LogInfo("Shutdown signal received, gracefully stopping...")

	select {
	case <-done:
		log.LogSuccess(name + " stopped gracefully")
	case <-time.After(10 * time.Second):
		log.LogWarn("Timeout waiting for monitors to stop")
	}
	return nil
}
