package watch

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func newTestEngine(t *testing.T, threshold float64) *Engine {
	t.Helper()
	chdirTemp(t)
	engine, err := NewEngine(threshold, "watch_state.json", func() int64 { return 1_700_000_000 })
	require.NoError(t, err)
	return engine
}

func sigAt(blockTime int64) *rpc.TransactionSignature {
	bt := solana.UnixTimeSeconds(blockTime)
	var sig solana.Signature
	sig[0] = byte(blockTime)
	return &rpc.TransactionSignature{Signature: sig, BlockTime: &bt}
}

func holdingOf(balance float64) func(context.Context, string) (*HoldingSnapshot, error) {
	return func(ctx context.Context, address string) (*HoldingSnapshot, error) {
		return &HoldingSnapshot{Address: address, Balance: balance}, nil
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	engine := newTestEngine(t, 100)

	require.Zero(t, engine.Watermark("s"))
	engine.InitWatermark("s", 500)
	require.EqualValues(t, 500, engine.Watermark("s"))
	engine.InitWatermark("s", 300)
	require.EqualValues(t, 500, engine.Watermark("s"), "watermark never moves back")
	engine.InitWatermark("s", 700)
	require.EqualValues(t, 700, engine.Watermark("s"))
}

func TestFreshSignaturesFiltersAndSorts(t *testing.T) {
	engine := newTestEngine(t, 100)
	engine.InitWatermark("s", 100)

	noTime := &rpc.TransactionSignature{}
	fresh := engine.FreshSignatures("s", []*rpc.TransactionSignature{
		sigAt(130), sigAt(90), sigAt(110), noTime, sigAt(100),
	})

	require.Len(t, fresh, 2)
	require.EqualValues(t, 110, int64(*fresh[0].BlockTime), "oldest first")
	require.EqualValues(t, 130, int64(*fresh[1].BlockTime))
}

func TestEmptySignatureBatchIsInert(t *testing.T) {
	engine := newTestEngine(t, 100)
	engine.InitWatermark("s", 50)

	require.Empty(t, engine.FreshSignatures("s", nil))
	require.Empty(t, engine.FreshSignatures("s", []*rpc.TransactionSignature{}))
	require.EqualValues(t, 50, engine.Watermark("s"))

	// No candidates means no holding lookups and no state movement.
	evaluated := false
	decision := engine.Decide(context.Background(), "s", "mint", nil,
		func(context.Context, string) (*HoldingSnapshot, error) {
			evaluated = true
			return nil, nil
		})
	require.Equal(t, OutcomeNone, decision.Outcome)
	require.False(t, evaluated)
	require.EqualValues(t, 50, engine.Watermark("s"))
}

func TestDecideThresholdBoundaryInclusive(t *testing.T) {
	engine := newTestEngine(t, 200_000)
	candidate := Candidate{Address: "holder", BlockTime: 150}

	decision := engine.Decide(context.Background(), "s", "mint", []Candidate{candidate}, holdingOf(200_000))
	require.Equal(t, OutcomeQualified, decision.Outcome)
	require.Equal(t, "holder", decision.Candidate.Address)
}

func TestDecideBelowThreshold(t *testing.T) {
	engine := newTestEngine(t, 200_000)
	candidate := Candidate{Address: "holder", BlockTime: 150}

	decision := engine.Decide(context.Background(), "s", "mint", []Candidate{candidate}, holdingOf(199_999))
	require.Equal(t, OutcomeNone, decision.Outcome)
	require.Zero(t, engine.Watermark("s"), "nothing qualified, watermark untouched")
}

func TestDecidePicksFirstQualifyingCandidate(t *testing.T) {
	engine := newTestEngine(t, 100)
	balances := map[string]float64{"small": 10, "big": 500}
	evaluate := func(ctx context.Context, address string) (*HoldingSnapshot, error) {
		return &HoldingSnapshot{Address: address, Balance: balances[address]}, nil
	}

	decision := engine.Decide(context.Background(), "s", "mint", []Candidate{
		{Address: "small", BlockTime: 10},
		{Address: "big", BlockTime: 20},
	}, evaluate)

	require.Equal(t, OutcomeQualified, decision.Outcome)
	require.Equal(t, "big", decision.Candidate.Address)
	require.EqualValues(t, 20, engine.Watermark("s"))
}

func TestDecideEvaluationErrorSkipsCandidate(t *testing.T) {
	engine := newTestEngine(t, 100)
	evaluate := func(ctx context.Context, address string) (*HoldingSnapshot, error) {
		if address == "broken" {
			return nil, errors.New("rpc unavailable")
		}
		return &HoldingSnapshot{Address: address, Balance: 500}, nil
	}

	decision := engine.Decide(context.Background(), "s", "mint", []Candidate{
		{Address: "broken", BlockTime: 10},
		{Address: "fine", BlockTime: 20},
	}, evaluate)

	require.Equal(t, OutcomeQualified, decision.Outcome)
	require.Equal(t, "fine", decision.Candidate.Address)
}

func TestDecideRepeatQualifierYieldsNone(t *testing.T) {
	engine := newTestEngine(t, 100)
	candidate := Candidate{Address: "holder", BlockTime: 10}

	first := engine.Decide(context.Background(), "s", "mint", []Candidate{candidate}, holdingOf(500))
	require.Equal(t, OutcomeQualified, first.Outcome)

	again := engine.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "holder", BlockTime: 30}}, holdingOf(500))
	require.Equal(t, OutcomeNone, again.Outcome)
}

func TestDecideProcessedKeyYieldsNone(t *testing.T) {
	engine := newTestEngine(t, 100)

	first := engine.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "alice", BlockTime: 10}}, holdingOf(500))
	require.Equal(t, OutcomeQualified, first.Outcome)

	second := engine.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "bob", BlockTime: 20}}, holdingOf(500))
	require.Equal(t, OutcomeQualified, second.Outcome)

	// alice is no longer the last qualifier but her dedupe key remains.
	third := engine.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "alice", BlockTime: 30}}, holdingOf(500))
	require.Equal(t, OutcomeNone, third.Outcome)
}

func TestDecideSameAddressDifferentMint(t *testing.T) {
	engine := newTestEngine(t, 100)

	first := engine.Decide(context.Background(), "s1", "mint-a",
		[]Candidate{{Address: "alice", BlockTime: 10}}, holdingOf(500))
	require.Equal(t, OutcomeQualified, first.Outcome)

	// Dedupe keys are scoped per mint.
	second := engine.Decide(context.Background(), "s2", "mint-b",
		[]Candidate{{Address: "alice", BlockTime: 20}}, holdingOf(500))
	require.Equal(t, OutcomeQualified, second.Outcome)
}

func TestStateSurvivesRestart(t *testing.T) {
	chdirTemp(t)
	now := func() int64 { return 1_700_000_000 }

	engine, err := NewEngine(100, "watch_state.json", now)
	require.NoError(t, err)

	decision := engine.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "alice", BlockTime: 42}}, holdingOf(500))
	require.Equal(t, OutcomeQualified, decision.Outcome)

	reloaded, err := NewEngine(100, "watch_state.json", now)
	require.NoError(t, err)
	require.EqualValues(t, 42, reloaded.Watermark("s"))

	repeat := reloaded.Decide(context.Background(), "s", "mint",
		[]Candidate{{Address: "alice", BlockTime: 60}}, holdingOf(500))
	require.Equal(t, OutcomeNone, repeat.Outcome, "dedupe persists across restart")
}
