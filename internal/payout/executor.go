package payout

// Two-step payout: claim the creator fee through the trade endpoint, then
// forward half of the beneficiary wallet's balance to the winner. The two
// steps are independently observable: each carries its own signature and
// error in the Result, the transfer proceeds after a failed claim, and a
// failed transfer never re-runs the claim.

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	log "clutch-protocol/internal/infra/log"
)

// ErrBalanceTooLow marks a transfer skipped because the beneficiary wallet
// holds less than the minimum payable balance.
var ErrBalanceTooLow = errors.New("beneficiary balance below minimum")

const minPayableLamports = 10_000_000 // 0.01 SOL

// TradeBuilder hands back a pre-built unsigned claim transaction.
type TradeBuilder interface {
	BuildClaimTransaction(ctx context.Context, actor string, priorityFee float64) ([]byte, error)
}

// Wallet is the submit-side ledger surface the executor needs.
type Wallet interface {
	NativeBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	SignAndSendRaw(ctx context.Context, raw []byte, signer solana.PrivateKey) (solana.Signature, error)
	SendInstructions(ctx context.Context, signer solana.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error)
}

// Result reports both steps separately so operators can retry either one
// without re-triggering the other.
type Result struct {
	ClaimSignature    solana.Signature
	ClaimErr          error
	TransferSignature solana.Signature
	TransferLamports  uint64
	TransferErr       error
}

type Executor struct {
	trade       TradeBuilder
	wallet      Wallet
	priorityFee float64
	stepDelay   time.Duration
}

func NewExecutor(trade TradeBuilder, wallet Wallet, priorityFee float64, stepDelay time.Duration) *Executor {
	return &Executor{trade: trade, wallet: wallet, priorityFee: priorityFee, stepDelay: stepDelay}
}

// Execute runs claim then transfer for one qualifying event. It is the
// caller's job (the qualification engine) to guarantee this runs at most
// once per event.
func (e *Executor) Execute(ctx context.Context, beneficiary solana.PrivateKey, winner solana.PublicKey) Result {
	var result Result

	result.ClaimSignature, result.ClaimErr = e.claim(ctx, beneficiary)
	if result.ClaimErr != nil {
		log.LogError("Creator fee claim failed",
			zap.String("beneficiary", beneficiary.PublicKey().String()),
			zap.Error(result.ClaimErr))
	} else {
		log.LogSuccess("Creator fee claimed",
			zap.String("tx", solscanLink(result.ClaimSignature)))
	}

	if e.stepDelay > 0 {
		t := time.NewTimer(e.stepDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			result.TransferErr = ctx.Err()
			return result
		case <-t.C:
		}
	}

	result.TransferSignature, result.TransferLamports, result.TransferErr = e.transferHalf(ctx, beneficiary, winner)
	if result.TransferErr != nil {
		log.LogError("Winner transfer failed",
			zap.String("winner", winner.String()),
			zap.Error(result.TransferErr))
	} else {
		log.LogSuccess("Winner transfer sent",
			zap.String("winner", winner.String()),
			zap.Uint64("lamports", result.TransferLamports),
			zap.String("tx", solscanLink(result.TransferSignature)))
	}
	return result
}

func (e *Executor) claim(ctx context.Context, beneficiary solana.PrivateKey) (solana.Signature, error) {
	raw, err := e.trade.BuildClaimTransaction(ctx, beneficiary.PublicKey().String(), e.priorityFee)
	if err != nil {
		return solana.Signature{}, err
	}
	return e.wallet.SignAndSendRaw(ctx, raw, beneficiary)
}

func (e *Executor) transferHalf(ctx context.Context, beneficiary solana.PrivateKey, winner solana.PublicKey) (solana.Signature, uint64, error) {
	balance, err := e.wallet.NativeBalance(ctx, beneficiary.PublicKey())
	if err != nil {
		return solana.Signature{}, 0, err
	}
	if balance < minPayableLamports {
		return solana.Signature{}, 0, ErrBalanceTooLow
	}

	half := balance / 2
	instruction := system.NewTransferInstruction(half, beneficiary.PublicKey(), winner).Build()

	sig, err := e.wallet.SendInstructions(ctx, beneficiary, instruction)
	if err != nil {
		return solana.Signature{}, 0, err
	}
	return sig, half, nil
}

func solscanLink(sig solana.Signature) string {
	return "https://solscan.io/tx/" + sig.String()
}
