package bots_monitor

// Single-subject native watcher. One fixed account is polled for incoming
// native transfers; the signer of each qualifying transfer is evaluated
// against the token threshold, with the holding duration reconstructed
// from the signer's token account history.

import (
	"context"
	"fmt"
	"time"

	"clutch-protocol/internal/config"
	"clutch-protocol/internal/features/winner_card"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/ledger"
	"clutch-protocol/internal/payout"
	"clutch-protocol/internal/watch"

	"github.com/gagliardetto/solana-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const clutchSubjectID = "clutch"

type ClutchMonitor struct {
	cfg       *config.Config
	client    *ledger.Client
	engine    *watch.Engine
	evaluator *watch.Evaluator
	executor  *payout.Executor
	scheduler *watch.Scheduler
	bot       *tgbotapi.BotAPI

	watched solana.PublicKey
	mint    solana.PublicKey
}

func NewClutchMonitor(cfg *config.Config, client *ledger.Client, engine *watch.Engine, evaluator *watch.Evaluator, executor *payout.Executor, bot *tgbotapi.BotAPI) (*ClutchMonitor, error) {
	watched, err := solana.PublicKeyFromBase58(cfg.Watcher.WatchedAccount)
	if err != nil {
		return nil, fmt.Errorf("invalid watched account: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.Watcher.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint: %w", err)
	}
	return &ClutchMonitor{
		cfg:       cfg,
		client:    client,
		engine:    engine,
		evaluator: evaluator,
		executor:  executor,
		scheduler: watch.NewScheduler(pollInterval(cfg.Watcher.MinPollSeconds), pollInterval(cfg.Watcher.MaxPollSeconds)),
		bot:       bot,
		watched:   watched,
		mint:      mint,
	}, nil
}

func (m *ClutchMonitor) Run(ctx context.Context) {
	log.LogInfo("Starting Clutch Monitor...",
		zap.String("watchedAccount", m.watched.String()),
		zap.String("tokenMint", m.mint.String()),
		zap.Float64("tokenThreshold", m.cfg.Watcher.TokenThreshold))
	m.scheduler.Run(ctx, m.pass)
}

func (m *ClutchMonitor) pass(ctx context.Context) {
	sigs, err := m.client.ListSignatures(ctx, m.watched, m.cfg.Watcher.SignatureLookback)
	if err != nil {
		log.LogError("Failed to list signatures for watched account", zap.Error(err))
		return
	}
	if len(sigs) == 0 {
		return
	}

	if m.engine.Watermark(clutchSubjectID) == 0 {
		if sigs[0].BlockTime != nil {
			m.engine.InitWatermark(clutchSubjectID, int64(*sigs[0].BlockTime))
			log.LogInfo("Watermark initialized from newest signature",
				zap.Int64("blockTime", int64(*sigs[0].BlockTime)))
		}
		return
	}

	fresh := m.engine.FreshSignatures(clutchSubjectID, sigs)
	if len(fresh) == 0 {
		return
	}

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
		tx, err := result.Transaction.GetTransaction()
		if err != nil {
			log.LogWarn("Failed to decode transaction envelope",
				zap.String("signature", sig.Signature.String()), zap.Error(err))
			continue
		}

		keys, err := m.client.ResolveAccountKeys(ctx, tx, result.Meta)
		if err != nil {
			log.LogWarn("Failed to resolve account keys",
				zap.String("signature", sig.Signature.String()), zap.Error(err))
			continue
		}

		candidate, ok := watch.NativeSender(tx, result.Meta, keys, m.cfg.Watcher.MinTransferSOL)
		if !ok {
			continue
		}
		candidate.BlockTime = int64(*sig.BlockTime)
		candidate.Signature = sig.Signature.String()
		candidates = append(candidates, candidate)

		log.LogInfo("Native transfer detected",
			zap.String("sender", candidate.Address),
			zap.Float64("amountSOL", candidate.AmountSOL),
			zap.String("signature", candidate.Signature))
	}
	if len(candidates) == 0 {
		if last := fresh[len(fresh)-1]; last.BlockTime != nil {
			m.engine.InitWatermark(clutchSubjectID, int64(*last.BlockTime))
		}
		return
	}

	decision := m.engine.Decide(ctx, clutchSubjectID, m.mint.String(), candidates, func(ctx context.Context, address string) (*watch.HoldingSnapshot, error) {
		owner, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return nil, err
		}
		return m.evaluator.Evaluate(ctx, owner, m.mint, true)
	})
	if decision.Outcome != watch.OutcomeQualified {
		return
	}

	log.LogSuccess("Qualifying sender found",
		zap.String("sender", decision.Candidate.Address),
		zap.Float64("balance", decision.Holding.Balance),
		zap.Duration("holdingDuration", decision.Holding.HoldingDuration))

	m.payOut(ctx, decision)
}

func (m *ClutchMonitor) payOut(ctx context.Context, decision watch.Decision) {
	beneficiary, err := solana.PrivateKeyFromBase58(m.cfg.Watcher.DevPrivateKey)
	if err != nil {
		log.LogError("Invalid dev private key", zap.Error(err))
		return
	}
	winner, err := solana.PublicKeyFromBase58(decision.Candidate.Address)
	if err != nil {
		log.LogError("Invalid winner address", zap.Error(err))
		return
	}

	result := m.executor.Execute(ctx, beneficiary, winner)
	if result.TransferErr != nil {
		return
	}

	m.announce(decision, result)
}

func (m *ClutchMonitor) announce(decision watch.Decision, result payout.Result) {
	if m.bot == nil || m.cfg.Telegram.PublicChannel == "" {
		return
	}

	amountSOL := ledger.LamportsToSOL(result.TransferLamports)
	text := fmt.Sprintf("🏆 New winner!\n\nWinner: %s\nHolding: %.0f tokens\nHeld for: %s\nPayout: %.4f SOL\nTx: https://solscan.io/tx/%s",
		decision.Candidate.Address,
		decision.Holding.Balance,
		formatDuration(decision.Holding.HoldingDuration),
		amountSOL,
		result.TransferSignature.String())

	cardPath, err := winner_card.Generate(winner_card.Card{
		Winner:    decision.Candidate.Address,
		AmountSOL: amountSOL,
	})
	if err != nil {
		log.LogWarn("Failed to generate winner card, sending text only", zap.Error(err))
		msg := tgbotapi.NewMessage(parseChatID(m.cfg.Telegram.PublicChannel), text)
		msg.DisableWebPagePreview = true
		if _, err := m.bot.Send(msg); err != nil {
			log.LogError("Failed to send winner announcement", zap.Error(err))
		}
		return
	}

	photo := tgbotapi.NewPhoto(parseChatID(m.cfg.Telegram.PublicChannel), tgbotapi.FilePath(cardPath))
	photo.Caption = text
	if _, err := m.bot.Send(photo); err != nil {
		log.LogError("Failed to send winner announcement photo", zap.Error(err))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}
