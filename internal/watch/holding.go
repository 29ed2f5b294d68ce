package watch

// Balance-and-holding evaluation. A holder's balance is summed across the
// closed set of token program variants the ledger supports, scaled by the
// mint's decimals. Holding duration is reconstructed from the token
// account's history on request; the watcher pipeline skips it, the
// single-account monitor reports it with the winner.

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	log "clutch-protocol/internal/infra/log"
)

// balanceSource is one way the ledger can hold a balance for an owner.
type balanceSource struct {
	name    string
	program solana.PublicKey
}

var balanceSources = []balanceSource{
	{name: "token", program: solana.TokenProgramID},
	{name: "token-2022", program: solana.Token2022ProgramID},
}

const (
	historyPageSize = 1000
	historyMaxSigs  = 5000
)

type Evaluator struct {
	ledger Ledger

	mu       sync.Mutex
	decimals map[string]uint8 // mint decimals are immutable, cache them
}

func NewEvaluator(ledger Ledger) *Evaluator {
	return &Evaluator{ledger: ledger, decimals: map[string]uint8{}}
}

// Evaluate returns the owner's current holding of mint, or nil when the
// total balance is zero. withDuration additionally walks the token account
// history to reconstruct how long the balance has been positive.
func (e *Evaluator) Evaluate(ctx context.Context, owner, mint solana.PublicKey, withDuration bool) (*HoldingSnapshot, error) {
	decimals, err := e.mintDecimals(ctx, mint)
	if err != nil {
		return nil, err
	}
	scale := math.Pow(10, float64(decimals))

	var totalRaw uint64
	var accounts []solana.PublicKey

	for _, source := range balanceSources {
		tokenAccounts, err := e.ledger.TokenAccountsByProgram(ctx, owner, source.program)
		if err != nil {
			// One program variant failing must not hide holdings in
			// the other.
			log.LogDebug("Balance source query failed, skipping",
				zap.String("source", source.name),
				zap.String("owner", owner.String()),
				zap.Error(err))
			continue
		}
		for _, acct := range tokenAccounts {
			acctMint, amount, ok := parseTokenAccount(acct.Account.Data.GetBinary())
			if !ok || !acctMint.Equals(mint) {
				continue
			}
			totalRaw += amount
			accounts = append(accounts, acct.Pubkey)
		}
	}

	if totalRaw == 0 {
		return nil, nil
	}

	snapshot := &HoldingSnapshot{
		Address: owner.String(),
		Mint:    mint.String(),
		Balance: float64(totalRaw) / scale,
	}

	if withDuration {
		var total time.Duration
		for _, account := range accounts {
			total += e.holdingDuration(ctx, account, owner, mint)
		}
		snapshot.HoldingDuration = total
	}
	return snapshot, nil
}

func (e *Evaluator) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	e.mu.Lock()
	if d, ok := e.decimals[mint.String()]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	d, err := e.ledger.MintDecimals(ctx, mint)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.decimals[mint.String()] = d
	e.mu.Unlock()
	return d, nil
}

// parseTokenAccount reads mint and amount from the fixed SPL token account
// layout: mint [0:32], owner [32:64], amount [64:72] little-endian.
func parseTokenAccount(data []byte) (solana.PublicKey, uint64, bool) {
	if len(data) < 72 {
		return solana.PublicKey{}, 0, false
	}
	mint := solana.PublicKeyFromBytes(data[0:32])
	amount := binary.LittleEndian.Uint64(data[64:72])
	return mint, amount, true
}

// holdingDuration walks the token account's transactions oldest-to-newest,
// starting a clock each time the owner's balance turns positive and
// accumulating elapsed time each time it returns to zero. A balance still
// positive now counts up to the present.
func (e *Evaluator) holdingDuration(ctx context.Context, account, owner, mint solana.PublicKey) time.Duration {
	var all []solana.Signature

	var before solana.Signature
	for len(all) < historyMaxSigs {
		page, err := e.listPage(ctx, account, before)
		if err != nil || len(page) == 0 {
			break
		}
		all = append(all, page...)
		before = page[len(page)-1]
		if len(page) < historyPageSize {
			break
		}
	}

	var holdingStart int64
	var accumulated time.Duration
	started := false

	// Pages come back newest-first; process chronologically.
	for i := len(all) - 1; i >= 0; i-- {
		tx, err := e.ledger.GetTransaction(ctx, all[i])
		if err != nil || tx == nil || tx.Meta == nil || tx.BlockTime == nil {
			continue
		}

		amount := uint64(0)
		found := false
		for _, post := range tx.Meta.PostTokenBalances {
			if post.Mint.Equals(mint) && post.Owner != nil && post.Owner.Equals(owner) {
				amount = rawAmount(post.UiTokenAmount)
				found = true
				break
			}
		}
		if !found {
			continue
		}

		blockTime := int64(*tx.BlockTime)
		if amount > 0 && !started {
			holdingStart = blockTime
			started = true
		} else if amount == 0 && started {
			accumulated += time.Duration(blockTime-holdingStart) * time.Second
			started = false
		}
	}

	if started {
		accumulated += time.Duration(time.Now().Unix()-holdingStart) * time.Second
	}
	return accumulated
}

func (e *Evaluator) listPage(ctx context.Context, account solana.PublicKey, before solana.Signature) ([]solana.Signature, error) {
	var sigs []*rpc.TransactionSignature
	var err error
	if before == (solana.Signature{}) {
		sigs, err = e.ledger.ListSignatures(ctx, account, historyPageSize)
	} else {
		sigs, err = e.ledger.ListSignaturesBefore(ctx, account, before, historyPageSize)
	}
	if err != nil {
		return nil, err
	}
	out := make([]solana.Signature, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, s.Signature)
	}
	return out, nil
}
