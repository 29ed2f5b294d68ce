package ledger

// Account-key resolution. Pre/post balance arrays are indexed against the
// full ordered key list the chain used when it recorded the transaction:
// static keys first, then lookup-table-loaded writable keys, then loaded
// read-only keys. Getting this order wrong attributes a transfer to the
// wrong party, so every path below must reproduce it exactly.

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TableFetcher resolves one address lookup table to its stored addresses.
type TableFetcher interface {
	LookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error)
}

// ResolveAccountKeys reconstructs the ordered participant list for a
// transaction. Legacy messages and v0 messages without lookups are the
// static key list verbatim. For v0 messages with lookups the node usually
// hands us the loaded addresses in the meta; when it does not, each
// distinct table is fetched once and indexed per the message's lookups.
func ResolveAccountKeys(ctx context.Context, fetcher TableFetcher, tx *solana.Transaction, meta *rpc.TransactionMeta) ([]string, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}

	keys := make([]string, 0, len(tx.Message.AccountKeys))
	for _, k := range tx.Message.AccountKeys {
		keys = append(keys, k.String())
	}

	lookups := tx.Message.AddressTableLookups
	if len(lookups) == 0 {
		return keys, nil
	}

	if meta != nil && len(meta.LoadedAddresses.Writable)+len(meta.LoadedAddresses.ReadOnly) > 0 {
		for _, k := range meta.LoadedAddresses.Writable {
			keys = append(keys, k.String())
		}
		for _, k := range meta.LoadedAddresses.ReadOnly {
			keys = append(keys, k.String())
		}
		return keys, nil
	}

	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(lookups))
	for _, lookup := range lookups {
		if _, ok := tables[lookup.AccountKey]; ok {
			continue
		}
		addresses, err := fetcher.LookupTable(ctx, lookup.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve lookup table: %w", err)
		}
		tables[lookup.AccountKey] = addresses
	}

	// Writable segments across all lookups come before any read-only
	// segment. This is the protocol's fixed layout.
	for _, lookup := range lookups {
		table := tables[lookup.AccountKey]
		for _, idx := range lookup.WritableIndexes {
			if int(idx) >= len(table) {
				return nil, fmt.Errorf("writable index %d out of range for table %s", idx, lookup.AccountKey)
			}
			keys = append(keys, table[idx].String())
		}
	}
	for _, lookup := range lookups {
		table := tables[lookup.AccountKey]
		for _, idx := range lookup.ReadonlyIndexes {
			if int(idx) >= len(table) {
				return nil, fmt.Errorf("readonly index %d out of range for table %s", idx, lookup.AccountKey)
			}
			keys = append(keys, table[idx].String())
		}
	}
	return keys, nil
}

// ResolveAccountKeys is the Client-bound form used by the monitors.
func (c *Client) ResolveAccountKeys(ctx context.Context, tx *solana.Transaction, meta *rpc.TransactionMeta) ([]string, error) {
	return ResolveAccountKeys(ctx, c, tx, meta)
}
