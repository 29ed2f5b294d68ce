package bots_monitor

// Multi-subject token watcher. Each registered subject pairs a beneficiary
// wallet with a token mint and its liquidity pool; the monitor polls the
// pool for new buyers, qualifies the first buyer holding enough of the
// mint, and triggers the two-step payout from the subject's wallet.

import (
	"context"
	"fmt"
	"time"

	"clutch-protocol/internal/config"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/ledger"
	"clutch-protocol/internal/payout"
	"clutch-protocol/internal/registry"
	"clutch-protocol/internal/watch"

	"github.com/gagliardetto/solana-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type WatcherMonitor struct {
	cfg       *config.Config
	client    *ledger.Client
	registry  *registry.Store
	engine    *watch.Engine
	evaluator *watch.Evaluator
	executor  *payout.Executor
	scheduler *watch.Scheduler
	bot       *tgbotapi.BotAPI
}

func NewWatcherMonitor(cfg *config.Config, client *ledger.Client, store *registry.Store, engine *watch.Engine, evaluator *watch.Evaluator, executor *payout.Executor, bot *tgbotapi.BotAPI) *WatcherMonitor {
	return &WatcherMonitor{
		cfg:       cfg,
		client:    client,
		registry:  store,
		engine:    engine,
		evaluator: evaluator,
		executor:  executor,
		scheduler: watch.NewScheduler(pollInterval(cfg.Watcher.MinPollSeconds), pollInterval(cfg.Watcher.MaxPollSeconds)),
		bot:       bot,
	}
}

// Run polls until ctx is cancelled.
func (m *WatcherMonitor) Run(ctx context.Context) {
	log.LogInfo("Starting Token Watcher Monitor...",
		zap.String("usersFile", m.cfg.Watcher.UsersFile),
		zap.Float64("tokenThreshold", m.cfg.Watcher.TokenThreshold))
	m.scheduler.Run(ctx, m.pass)
}

func (m *WatcherMonitor) pass(ctx context.Context) {
	subjects, err := m.registry.Active()
	if err != nil {
		log.LogError("Failed to load active subjects", zap.Error(err))
		return
	}
	if len(subjects) == 0 {
		log.LogDebug("No active subjects registered")
		return
	}

	watch.FanOut(ctx, subjects, m.scanSubject)
}

func (m *WatcherMonitor) scanSubject(ctx context.Context, subject registry.WatchedSubject) {
	pool, err := solana.PublicKeyFromBase58(subject.LPAddress)
	if err != nil {
		log.LogWarn("Invalid pool address in registry, skipping subject",
			zap.String("pool", subject.LPAddress), zap.Error(err))
		return
	}
	mint, err := solana.PublicKeyFromBase58(subject.TokenCA)
	if err != nil {
		log.LogWarn("Invalid mint address in registry, skipping subject",
			zap.String("mint", subject.TokenCA), zap.Error(err))
		return
	}

	id := subject.ID()

	sigs, err := m.client.ListSignatures(ctx, pool, m.cfg.Watcher.SignatureLookback)
	if err != nil {
		log.LogError("Failed to list pool signatures",
			zap.String("subject", id), zap.Error(err))
		return
	}
	if len(sigs) == 0 {
		return
	}

	if m.engine.Watermark(id) == 0 {
		// First sight of this subject: start from the newest activity so
		// historical buys never trigger a payout.
		if sigs[0].BlockTime != nil {
			m.engine.InitWatermark(id, int64(*sigs[0].BlockTime))
		}
		return
	}

	fresh := m.engine.FreshSignatures(id, sigs)
	if len(fresh) == 0 {
		return
	}
	log.LogInfo("Scanning fresh pool transactions",
		zap.String("subject", id), zap.Int("count", len(fresh)))

	var candidates []watch.Candidate
	for _, sig := range fresh {
		result, err := m.client.GetTransaction(ctx, sig.Signature)
		if err != nil {
			log.LogWarn("Failed to fetch transaction",
				zap.String("signature", sig.Signature.String()), zap.Error(err))
			continue
		}
		if result == nil || result.Meta == nil {
			continue
		}
		for _, buyer := range watch.TokenBuyers(result.Meta, subject.TokenCA, subject.LPAddress) {
			candidates = append(candidates, watch.Candidate{
				Address:   buyer,
				BlockTime: int64(*sig.BlockTime),
				Signature: sig.Signature.String(),
			})
		}
	}
	if len(candidates) == 0 {
		// Nothing actionable in this batch; remember we looked at it.
		if last := fresh[len(fresh)-1]; last.BlockTime != nil {
			m.engine.InitWatermark(id, int64(*last.BlockTime))
		}
		return
	}

	decision := m.engine.Decide(ctx, id, subject.TokenCA, candidates, func(ctx context.Context, address string) (*watch.HoldingSnapshot, error) {
		owner, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return nil, err
		}
		return m.evaluator.Evaluate(ctx, owner, mint, false)
	})
	if decision.Outcome != watch.OutcomeQualified {
		return
	}

	log.LogSuccess("Qualifying buyer found",
		zap.String("subject", id),
		zap.String("buyer", decision.Candidate.Address),
		zap.Float64("balance", decision.Holding.Balance))

	m.payOut(ctx, subject, decision)
}

func (m *WatcherMonitor) payOut(ctx context.Context, subject registry.WatchedSubject, decision watch.Decision) {
	beneficiary, err := solana.PrivateKeyFromBase58(subject.PrivateKey)
	if err != nil {
		log.LogError("Invalid beneficiary private key in registry",
			zap.String("subject", subject.ID()), zap.Error(err))
		return
	}
	winner, err := solana.PublicKeyFromBase58(decision.Candidate.Address)
	if err != nil {
		log.LogError("Invalid winner address", zap.Error(err))
		return
	}

	result := m.executor.Execute(ctx, beneficiary, winner)

	if m.bot != nil && m.cfg.Telegram.PublicChannel != "" && result.TransferErr == nil {
		text := fmt.Sprintf("🏆 Winner paid out\n\nToken: %s\nWinner: %s\nAmount: %.4f SOL\nTx: https://solscan.io/tx/%s",
			subject.TokenCA,
			decision.Candidate.Address,
			ledger.LamportsToSOL(result.TransferLamports),
			result.TransferSignature.String())
		msg := tgbotapi.NewMessage(parseChatID(m.cfg.Telegram.PublicChannel), text)
		msg.DisableWebPagePreview = true
		if _, err := m.bot.Send(msg); err != nil {
			log.LogError("Failed to send payout notification", zap.Error(err))
		}
	}
}

func parseChatID(chatIDStr string) int64 {
	var chatID int64
	fmt.Sscanf(chatIDStr, "%d", &chatID)
	return chatID
}

func pollInterval(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
