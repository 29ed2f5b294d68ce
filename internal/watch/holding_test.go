package watch

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	decimals   map[string]uint8
	accounts   map[string][]*rpc.TokenAccount // program -> owner's accounts
	history    []*rpc.TransactionSignature    // newest first
	txs        map[solana.Signature]*rpc.GetTransactionResult
	failTokens bool
}

func (f *fakeLedger) ListSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	return f.history, nil
}

func (f *fakeLedger) ListSignaturesBefore(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]*rpc.TransactionSignature, error) {
	return nil, nil
}

func (f *fakeLedger) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	return f.txs[signature], nil
}

func (f *fakeLedger) ResolveAccountKeys(ctx context.Context, tx *solana.Transaction, meta *rpc.TransactionMeta) ([]string, error) {
	return nil, nil
}

func (f *fakeLedger) TokenAccountsByProgram(ctx context.Context, owner, program solana.PublicKey) ([]*rpc.TokenAccount, error) {
	if f.failTokens && program.Equals(solana.TokenProgramID) {
		return nil, errors.New("rpc unavailable")
	}
	return f.accounts[program.String()], nil
}

func (f *fakeLedger) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	d, ok := f.decimals[mint.String()]
	if !ok {
		return 0, errors.New("mint not found")
	}
	return d, nil
}

// tokenAccountData builds the binary SPL token account layout.
func tokenAccountData(t *testing.T, mint, owner solana.PublicKey, amount uint64) *rpc.DataBytesOrJSON {
	t.Helper()
	raw := make([]byte, 165)
	copy(raw[0:32], mint.Bytes())
	copy(raw[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(raw[64:72], amount)

	var d rpc.DataBytesOrJSON
	encoded := fmt.Sprintf(`["%s","base64"]`, base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, json.Unmarshal([]byte(encoded), &d))
	return &d
}

func tokenAcct(t *testing.T, mint, owner solana.PublicKey, amount uint64) *rpc.TokenAccount {
	t.Helper()
	return &rpc.TokenAccount{
		Pubkey:  solana.NewWallet().PublicKey(),
		Account: rpc.Account{Data: tokenAccountData(t, mint, owner, amount)},
	}
}

func TestEvaluateSumsAcrossPrograms(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	otherMint := solana.NewWallet().PublicKey()

	ledger := &fakeLedger{
		decimals: map[string]uint8{mint.String(): 6},
		accounts: map[string][]*rpc.TokenAccount{
			solana.TokenProgramID.String(): {
				tokenAcct(t, mint, owner, 150_000_000),
				tokenAcct(t, otherMint, owner, 999_999),
			},
			solana.Token2022ProgramID.String(): {
				tokenAcct(t, mint, owner, 50_000_000),
			},
		},
	}

	snapshot, err := NewEvaluator(ledger).Evaluate(context.Background(), owner, mint, false)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.InDelta(t, 200.0, snapshot.Balance, 1e-9)
	require.Equal(t, owner.String(), snapshot.Address)
	require.Zero(t, snapshot.HoldingDuration)
}

func TestEvaluateZeroBalanceReturnsNil(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ledger := &fakeLedger{decimals: map[string]uint8{mint.String(): 6}}
	snapshot, err := NewEvaluator(ledger).Evaluate(context.Background(), owner, mint, false)
	require.NoError(t, err)
	require.Nil(t, snapshot)
}

func TestEvaluateSurvivesOneProgramFailing(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ledger := &fakeLedger{
		decimals:   map[string]uint8{mint.String(): 2},
		failTokens: true,
		accounts: map[string][]*rpc.TokenAccount{
			solana.Token2022ProgramID.String(): {
				tokenAcct(t, mint, owner, 12345),
			},
		},
	}

	snapshot, err := NewEvaluator(ledger).Evaluate(context.Background(), owner, mint, false)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.InDelta(t, 123.45, snapshot.Balance, 1e-9)
}

func TestEvaluateUnknownMint(t *testing.T) {
	ledger := &fakeLedger{decimals: map[string]uint8{}}
	_, err := NewEvaluator(ledger).Evaluate(context.Background(),
		solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), false)
	require.Error(t, err)
}

func historyTx(mint solana.PublicKey, owner solana.PublicKey, blockTime int64, amount uint64) *rpc.GetTransactionResult {
	bt := solana.UnixTimeSeconds(blockTime)
	return &rpc.GetTransactionResult{
		BlockTime: &bt,
		Meta: &rpc.TransactionMeta{
			PostTokenBalances: []rpc.TokenBalance{
				{
					Mint:          mint,
					Owner:         &owner,
					UiTokenAmount: &rpc.UiTokenAmount{Amount: fmt.Sprintf("%d", amount)},
				},
			},
		},
	}
}

func TestHoldingDurationReconstruction(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	// Chronologically: buy at t=100, empty at t=200, buy again at t=250,
	// empty again at t=400. Two closed holding windows, 250s total.
	events := []struct {
		blockTime int64
		amount    uint64
	}{
		{100, 1000},
		{200, 0},
		{250, 500},
		{400, 0},
	}

	ledger := &fakeLedger{
		decimals: map[string]uint8{mint.String(): 0},
		accounts: map[string][]*rpc.TokenAccount{
			solana.TokenProgramID.String(): {
				tokenAcct(t, mint, owner, 500),
			},
		},
		txs: map[solana.Signature]*rpc.GetTransactionResult{},
	}
	// History comes back newest-first.
	for i := len(events) - 1; i >= 0; i-- {
		var sig solana.Signature
		sig[0] = byte(i + 1)
		bt := solana.UnixTimeSeconds(events[i].blockTime)
		ledger.history = append(ledger.history, &rpc.TransactionSignature{Signature: sig, BlockTime: &bt})
		ledger.txs[sig] = historyTx(mint, owner, events[i].blockTime, events[i].amount)
	}

	snapshot, err := NewEvaluator(ledger).Evaluate(context.Background(), owner, mint, true)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.Equal(t, 250*time.Second, snapshot.HoldingDuration)
}

func TestMintDecimalsCached(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ledger := &fakeLedger{
		decimals: map[string]uint8{mint.String(): 3},
		accounts: map[string][]*rpc.TokenAccount{
			solana.TokenProgramID.String(): {tokenAcct(t, mint, owner, 5000)},
		},
	}
	evaluator := NewEvaluator(ledger)

	_, err := evaluator.Evaluate(context.Background(), owner, mint, false)
	require.NoError(t, err)

	// Second call must not consult the ledger for decimals again.
	ledger.decimals = map[string]uint8{}
	snapshot, err := evaluator.Evaluate(context.Background(), owner, mint, false)
	require.NoError(t, err)
	require.InDelta(t, 5.0, snapshot.Balance, 1e-9)
}
