package bots_monitor

// Buy-burn monitor. On a randomized interval it checks recent trading
// volume for the configured mint; when volume clears the floor it buys a
// fixed fraction of the dev wallet's balance through the trade endpoint
// and burns the purchased tokens.

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"clutch-protocol/internal/clients_api/dexscreener"
	"clutch-protocol/internal/clients_api/pumpportal"
	"clutch-protocol/internal/config"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/ledger"

	"github.com/gagliardetto/solana-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const burnInstructionDiscriminant = 8

type BuyBurnMonitor struct {
	cfg        *config.Config
	client     *ledger.Client
	trade      *pumpportal.Client
	dex        *dexscreener.Client
	bot        *tgbotapi.BotAPI
	dev        solana.PrivateKey
	mint       solana.PublicKey
	settleWait time.Duration
}

func NewBuyBurnMonitor(cfg *config.Config, client *ledger.Client, trade *pumpportal.Client, dex *dexscreener.Client, bot *tgbotapi.BotAPI) (*BuyBurnMonitor, error) {
	dev, err := solana.PrivateKeyFromBase58(cfg.Watcher.DevPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid dev private key: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.BuyBurn.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid buyburn mint: %w", err)
	}
	return &BuyBurnMonitor{
		cfg:        cfg,
		client:     client,
		trade:      trade,
		dex:        dex,
		bot:        bot,
		dev:        dev,
		mint:       mint,
		settleWait: 15 * time.Second,
	}, nil
}

func (m *BuyBurnMonitor) Run(ctx context.Context) {
	log.LogInfo("Starting Buy-Burn Monitor...",
		zap.String("mint", m.mint.String()),
		zap.Float64("buyPercentage", m.cfg.BuyBurn.BuyPercentage),
		zap.Float64("minVolume5mUSD", m.cfg.BuyBurn.MinVolume5mUSD))

	for {
		wait := m.nextWait()
		log.LogDebug("Next buy-burn check scheduled", zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.LogInfo("Buy-burn monitor stopped")
			return
		case <-timer.C:
			m.cycle(ctx)
		}
	}
}

func (m *BuyBurnMonitor) nextWait() time.Duration {
	min := m.cfg.BuyBurn.MinWaitSeconds
	max := m.cfg.BuyBurn.MaxWaitSeconds
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+rand.Intn(max-min)) * time.Second
}

func (m *BuyBurnMonitor) cycle(ctx context.Context) {
	volume, err := m.dex.Volume5mUSD(ctx, m.mint.String())
	if err != nil {
		log.LogError("Failed to fetch 5m volume", zap.Error(err))
		return
	}
	if volume < m.cfg.BuyBurn.MinVolume5mUSD {
		log.LogDebug("Volume below buy-burn floor",
			zap.Float64("volume", volume),
			zap.Float64("floor", m.cfg.BuyBurn.MinVolume5mUSD))
		return
	}

	balance, err := m.client.NativeBalance(ctx, m.dev.PublicKey())
	if err != nil {
		log.LogError("Failed to read dev wallet balance", zap.Error(err))
		return
	}
	amountSOL := ledger.LamportsToSOL(balance) * m.cfg.BuyBurn.BuyPercentage
	if amountSOL <= 0 {
		log.LogWarn("Dev wallet empty, skipping buy-burn cycle")
		return
	}

	buySig, err := m.buy(ctx, amountSOL)
	if err != nil {
		log.LogError("Buy step failed", zap.Error(err))
		return
	}
	log.LogSuccess("Buy executed",
		zap.Float64("amountSOL", amountSOL),
		zap.String("tx", buySig.String()))

	// Give the buy time to land before reading the token balance.
	timer := time.NewTimer(m.settleWait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	burnSig, burned, err := m.burn(ctx)
	if err != nil {
		log.LogError("Burn step failed", zap.Error(err))
		return
	}
	log.LogSuccess("Burn executed",
		zap.Uint64("rawAmount", burned),
		zap.String("tx", burnSig.String()))

	m.alert(volume, amountSOL, burned, buySig, burnSig)
}

func (m *BuyBurnMonitor) buy(ctx context.Context, amountSOL float64) (solana.Signature, error) {
	raw, err := m.trade.BuildBuyTransaction(ctx,
		m.dev.PublicKey().String(),
		m.mint.String(),
		amountSOL,
		m.cfg.Payout.Slippage,
		m.cfg.Payout.PriorityFee,
		m.cfg.Payout.Pool)
	if err != nil {
		return solana.Signature{}, err
	}
	return m.client.SignAndSendRaw(ctx, raw, m.dev)
}

// burn empties the dev wallet's token account for the mint with a raw burn
// instruction (discriminant 8, u64 amount, accounts source/mint/owner).
func (m *BuyBurnMonitor) burn(ctx context.Context) (solana.Signature, uint64, error) {
	source, amount, err := m.tokenAccount(ctx)
	if err != nil {
		return solana.Signature{}, 0, err
	}
	if amount == 0 {
		return solana.Signature{}, 0, fmt.Errorf("no tokens to burn for mint %s", m.mint)
	}

	data := make([]byte, 9)
	data[0] = burnInstructionDiscriminant
	binary.LittleEndian.PutUint64(data[1:], amount)

	instruction := solana.NewInstruction(
		solana.Token2022ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(source).WRITE(),
			solana.Meta(m.mint).WRITE(),
			solana.Meta(m.dev.PublicKey()).SIGNER(),
		},
		data,
	)

	sig, err := m.client.SendInstructions(ctx, m.dev, instruction)
	if err != nil {
		return solana.Signature{}, 0, err
	}
	return sig, amount, nil
}

// tokenAccount finds the dev wallet's largest token account for the mint.
func (m *BuyBurnMonitor) tokenAccount(ctx context.Context) (solana.PublicKey, uint64, error) {
	accounts, err := m.client.TokenAccountsByProgram(ctx, m.dev.PublicKey(), solana.Token2022ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}

	var best solana.PublicKey
	var bestAmount uint64
	for _, account := range accounts {
		data := account.Account.Data.GetBinary()
		if len(data) < 72 {
			continue
		}
		accountMint := solana.PublicKeyFromBytes(data[0:32])
		if !accountMint.Equals(m.mint) {
			continue
		}
		amount := binary.LittleEndian.Uint64(data[64:72])
		if amount > bestAmount {
			best = account.Pubkey
			bestAmount = amount
		}
	}
	if bestAmount == 0 {
		return solana.PublicKey{}, 0, nil
	}
	return best, bestAmount, nil
}

func (m *BuyBurnMonitor) alert(volume, amountSOL float64, burned uint64, buySig, burnSig solana.Signature) {
	if m.bot == nil || m.cfg.Telegram.PublicChannel == "" {
		return
	}
	text := fmt.Sprintf("🔥 Buy & Burn\n\n5m volume: $%.0f\nBought: %.4f SOL\nBurned: %d raw units\nBuy: https://solscan.io/tx/%s\nBurn: https://solscan.io/tx/%s",
		volume, amountSOL, burned, buySig.String(), burnSig.String())
	msg := tgbotapi.NewMessage(parseChatID(m.cfg.Telegram.PublicChannel), text)
	msg.DisableWebPagePreview = true
	if _, err := m.bot.Send(msg); err != nil {
		log.LogError("Failed to send buy-burn alert", zap.Error(err))
	}
}
