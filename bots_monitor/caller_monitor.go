package bots_monitor

// Caller monitor. Watches a payout wallet for outgoing native transfers
// and posts the receiving address to the caller channel. Uses a fixed
// short interval rather than the jittered watcher schedule so winner
// posts land quickly after the payout.

import (
	"context"
	"fmt"
	"time"

	"clutch-protocol/internal/config"
	"clutch-protocol/internal/features/winner_card"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/ledger"
	"clutch-protocol/internal/watch"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const callerSubjectID = "caller"

type CallerMonitor struct {
	cfg    *config.Config
	client *ledger.Client
	engine *watch.Engine
	bot    *tgbotapi.BotAPI

	wallet   solana.PublicKey
	excluded string
}

func NewCallerMonitor(cfg *config.Config, client *ledger.Client, engine *watch.Engine, bot *tgbotapi.BotAPI) (*CallerMonitor, error) {
	wallet, err := solana.PublicKeyFromBase58(cfg.Telegram.CallerWallet)
	if err != nil {
		return nil, fmt.Errorf("invalid caller wallet: %w", err)
	}
	return &CallerMonitor{
		cfg:      cfg,
		client:   client,
		engine:   engine,
		bot:      bot,
		wallet:   wallet,
		excluded: cfg.Telegram.CallerExcluded,
	}, nil
}

func (m *CallerMonitor) Run(ctx context.Context) {
	log.LogInfo("Starting Caller Monitor...",
		zap.String("wallet", m.wallet.String()),
		zap.String("channel", m.cfg.Telegram.CallerChannel),
		zap.Int("intervalSeconds", m.cfg.Telegram.CallerInterval))

	ticker := time.NewTicker(time.Duration(m.cfg.Telegram.CallerInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Caller monitor stopped")
			return
		case <-ticker.C:
			m.pass(ctx)
		}
	}
}

func (m *CallerMonitor) pass(ctx context.Context) {
	sigs, err := m.client.ListSignatures(ctx, m.wallet, m.cfg.Watcher.SignatureLookback)
	if err != nil {
		log.LogError("Failed to list caller wallet signatures", zap.Error(err))
		return
	}
	if len(sigs) == 0 {
		return
	}

	if m.engine.Watermark(callerSubjectID) == 0 {
		if sigs[0].BlockTime != nil {
			m.engine.InitWatermark(callerSubjectID, int64(*sigs[0].BlockTime))
		}
		return
	}

	fresh := m.engine.FreshSignatures(callerSubjectID, sigs)
	for _, sig := range fresh {
		m.inspect(ctx, sig.Signature, int64(*sig.BlockTime))
		m.engine.InitWatermark(callerSubjectID, int64(*sig.BlockTime))
	}
}

func (m *CallerMonitor) inspect(ctx context.Context, signature solana.Signature, blockTime int64) {
	result, err := m.client.GetTransaction(ctx, signature)
	if err != nil {
		log.LogWarn("Failed to fetch caller transaction",
			zap.String("signature", signature.String()), zap.Error(err))
		return
	}
	if result == nil || result.Meta == nil {
		return
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		log.LogWarn("Failed to decode caller transaction",
			zap.String("signature", signature.String()), zap.Error(err))
		return
	}

	keys, err := m.client.ResolveAccountKeys(ctx, tx, result.Meta)
	if err != nil {
		log.LogWarn("Failed to resolve account keys",
			zap.String("signature", signature.String()), zap.Error(err))
		return
	}

	receiver, ok := watch.ReceiverOfOutgoing(result.Meta, keys, m.wallet.String(), m.excluded)
	if !ok {
		return
	}

	received := receivedSOL(result.Meta, keys, receiver)
	log.LogSuccess("Outgoing payout detected",
		zap.String("receiver", receiver),
		zap.Float64("amountSOL", received),
		zap.String("signature", signature.String()))

	m.post(receiver, received, signature)
}

// receivedSOL reads the receiver's native balance delta out of the meta.
func receivedSOL(meta *rpc.TransactionMeta, keys []string, receiver string) float64 {
	for i, key := range keys {
		if key != receiver || i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			continue
		}
		if meta.PostBalances[i] > meta.PreBalances[i] {
			return ledger.LamportsToSOL(meta.PostBalances[i] - meta.PreBalances[i])
		}
	}
	return 0
}

func (m *CallerMonitor) post(receiver string, amountSOL float64, signature solana.Signature) {
	if m.bot == nil || m.cfg.Telegram.CallerChannel == "" {
		return
	}

	text := fmt.Sprintf("🎉 Winner alert!\n\nWinner: %s\nReceived: %.4f SOL\nTx: https://solscan.io/tx/%s",
		receiver, amountSOL, signature.String())

	cardPath, err := winner_card.Generate(winner_card.Card{Winner: receiver, AmountSOL: amountSOL})
	if err != nil {
		log.LogWarn("Failed to generate winner card for caller post", zap.Error(err))
		msg := tgbotapi.NewMessage(parseChatID(m.cfg.Telegram.CallerChannel), text)
		msg.DisableWebPagePreview = true
		if _, err := m.bot.Send(msg); err != nil {
			log.LogError("Failed to post caller message", zap.Error(err))
		}
		return
	}

	photo := tgbotapi.NewPhoto(parseChatID(m.cfg.Telegram.CallerChannel), tgbotapi.FilePath(cardPath))
	photo.Caption = text
	if _, err := m.bot.Send(photo); err != nil {
		log.LogError("Failed to post caller photo", zap.Error(err))
	}
}
