package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type fakeTrade struct {
	raw []byte
	err error
}

func (f *fakeTrade) BuildClaimTransaction(ctx context.Context, actor string, priorityFee float64) ([]byte, error) {
	return f.raw, f.err
}

type fakeWallet struct {
	balance    uint64
	balanceErr error
	sendErr    error

	sentRaw          [][]byte
	sentInstructions []solana.Instruction
}

func (f *fakeWallet) NativeBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeWallet) SignAndSendRaw(ctx context.Context, raw []byte, signer solana.PrivateKey) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sentRaw = append(f.sentRaw, raw)
	var sig solana.Signature
	sig[0] = 0xAA
	return sig, nil
}

func (f *fakeWallet) SendInstructions(ctx context.Context, signer solana.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sentInstructions = append(f.sentInstructions, instructions...)
	var sig solana.Signature
	sig[0] = 0xBB
	return sig, nil
}

func testKeypair(t *testing.T) solana.PrivateKey {
	t.Helper()
	return solana.NewWallet().PrivateKey
}

func TestExecuteBothStepsSucceed(t *testing.T) {
	wallet := &fakeWallet{balance: 2_000_000_000}
	executor := NewExecutor(&fakeTrade{raw: []byte{1, 2, 3}}, wallet, 0.000001, 0)

	result := executor.Execute(context.Background(), testKeypair(t), solana.NewWallet().PublicKey())

	require.NoError(t, result.ClaimErr)
	require.NoError(t, result.TransferErr)
	require.EqualValues(t, 1_000_000_000, result.TransferLamports, "half the balance")
	require.Len(t, wallet.sentRaw, 1)
	require.Len(t, wallet.sentInstructions, 1)
}

func TestExecuteClaimFailureDoesNotBlockTransfer(t *testing.T) {
	wallet := &fakeWallet{balance: 100_000_000}
	executor := NewExecutor(&fakeTrade{err: errors.New("trade endpoint down")}, wallet, 0.000001, 0)

	result := executor.Execute(context.Background(), testKeypair(t), solana.NewWallet().PublicKey())

	require.Error(t, result.ClaimErr)
	require.NoError(t, result.TransferErr)
	require.EqualValues(t, 50_000_000, result.TransferLamports)
}

func TestExecuteBalanceTooLow(t *testing.T) {
	wallet := &fakeWallet{balance: 9_999_999}
	executor := NewExecutor(&fakeTrade{raw: []byte{1}}, wallet, 0.000001, 0)

	result := executor.Execute(context.Background(), testKeypair(t), solana.NewWallet().PublicKey())

	require.NoError(t, result.ClaimErr)
	require.ErrorIs(t, result.TransferErr, ErrBalanceTooLow)
	require.Empty(t, wallet.sentInstructions)
}

func TestExecuteBalanceReadFailure(t *testing.T) {
	wallet := &fakeWallet{balanceErr: errors.New("rpc unavailable")}
	executor := NewExecutor(&fakeTrade{raw: []byte{1}}, wallet, 0.000001, 0)

	result := executor.Execute(context.Background(), testKeypair(t), solana.NewWallet().PublicKey())

	require.NoError(t, result.ClaimErr)
	require.Error(t, result.TransferErr)
	require.Empty(t, wallet.sentInstructions)
}

func TestExecuteCancelledBetweenSteps(t *testing.T) {
	wallet := &fakeWallet{balance: 2_000_000_000}
	executor := NewExecutor(&fakeTrade{raw: []byte{1}}, wallet, 0.000001, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := executor.Execute(ctx, testKeypair(t), solana.NewWallet().PublicKey())
	require.ErrorIs(t, result.TransferErr, context.Canceled)
	require.Empty(t, wallet.sentInstructions)
}
