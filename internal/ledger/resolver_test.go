package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	tables map[solana.PublicKey]solana.PublicKeySlice
	calls  int
}

func (f *fakeFetcher) LookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	f.calls++
	addresses, ok := f.tables[table]
	if !ok {
		return nil, errors.New("table not found")
	}
	return addresses, nil
}

func wallets(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		out[i] = solana.NewWallet().PublicKey()
	}
	return out
}

func asStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func TestResolveStaticKeysOnly(t *testing.T) {
	static := wallets(3)
	tx := &solana.Transaction{Message: solana.Message{AccountKeys: static}}

	keys, err := ResolveAccountKeys(context.Background(), &fakeFetcher{}, tx, nil)
	require.NoError(t, err)
	require.Equal(t, asStrings(static), keys)
}

func TestResolvePrefersLoadedAddresses(t *testing.T) {
	static := wallets(2)
	writable := wallets(2)
	readonly := wallets(1)
	table := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{Message: solana.Message{
		AccountKeys: static,
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{AccountKey: table, WritableIndexes: []uint8{0, 1}, ReadonlyIndexes: []uint8{2}},
		},
	}}
	meta := &rpc.TransactionMeta{
		LoadedAddresses: rpc.LoadedAddresses{
			Writable: writable,
			ReadOnly: readonly,
		},
	}

	fetcher := &fakeFetcher{}
	keys, err := ResolveAccountKeys(context.Background(), fetcher, tx, meta)
	require.NoError(t, err)

	want := append(asStrings(static), asStrings(writable)...)
	want = append(want, asStrings(readonly)...)
	require.Equal(t, want, keys)
	require.Zero(t, fetcher.calls, "meta already has the addresses, no fetch")
}

func TestResolveFetchesLookupTables(t *testing.T) {
	static := wallets(1)
	tableAddresses := wallets(4)
	table := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{Message: solana.Message{
		AccountKeys: static,
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{AccountKey: table, WritableIndexes: []uint8{3, 0}, ReadonlyIndexes: []uint8{2}},
		},
	}}
	fetcher := &fakeFetcher{tables: map[solana.PublicKey]solana.PublicKeySlice{
		table: tableAddresses,
	}}

	keys, err := ResolveAccountKeys(context.Background(), fetcher, tx, nil)
	require.NoError(t, err)

	want := []string{
		static[0].String(),
		tableAddresses[3].String(),
		tableAddresses[0].String(),
		tableAddresses[2].String(),
	}
	require.Equal(t, want, keys)
	require.Equal(t, 1, fetcher.calls)
}

func TestResolveWritableSegmentsBeforeReadonly(t *testing.T) {
	static := wallets(1)
	tableA := solana.NewWallet().PublicKey()
	tableB := solana.NewWallet().PublicKey()
	addressesA := wallets(2)
	addressesB := wallets(2)

	tx := &solana.Transaction{Message: solana.Message{
		AccountKeys: static,
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{AccountKey: tableA, WritableIndexes: []uint8{0}, ReadonlyIndexes: []uint8{1}},
			{AccountKey: tableB, WritableIndexes: []uint8{1}, ReadonlyIndexes: []uint8{0}},
		},
	}}
	fetcher := &fakeFetcher{tables: map[solana.PublicKey]solana.PublicKeySlice{
		tableA: addressesA,
		tableB: addressesB,
	}}

	keys, err := ResolveAccountKeys(context.Background(), fetcher, tx, nil)
	require.NoError(t, err)

	// All writable segments in lookup order, then all read-only segments.
	want := []string{
		static[0].String(),
		addressesA[0].String(),
		addressesB[1].String(),
		addressesA[1].String(),
		addressesB[0].String(),
	}
	require.Equal(t, want, keys)
}

func TestResolveIndexOutOfRange(t *testing.T) {
	table := solana.NewWallet().PublicKey()
	tx := &solana.Transaction{Message: solana.Message{
		AccountKeys: wallets(1),
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{AccountKey: table, WritableIndexes: []uint8{9}},
		},
	}}
	fetcher := &fakeFetcher{tables: map[solana.PublicKey]solana.PublicKeySlice{
		table: wallets(2),
	}}

	_, err := ResolveAccountKeys(context.Background(), fetcher, tx, nil)
	require.Error(t, err)
}

func TestResolveFetchError(t *testing.T) {
	tx := &solana.Transaction{Message: solana.Message{
		AccountKeys: wallets(1),
		AddressTableLookups: []solana.MessageAddressTableLookup{
			{AccountKey: solana.NewWallet().PublicKey(), WritableIndexes: []uint8{0}},
		},
	}}

	_, err := ResolveAccountKeys(context.Background(), &fakeFetcher{}, tx, nil)
	require.Error(t, err)
}

func TestResolveNilTransaction(t *testing.T) {
	_, err := ResolveAccountKeys(context.Background(), &fakeFetcher{}, nil, nil)
	require.Error(t, err)
}

func TestLamportsToSOL(t *testing.T) {
	require.InDelta(t, 1.0, LamportsToSOL(1_000_000_000), 1e-12)
	require.InDelta(t, 0.5, LamportsToSOL(500_000_000), 1e-12)
	require.Zero(t, LamportsToSOL(0))
}
