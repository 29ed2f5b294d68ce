package watch

// Candidate extraction from a resolved transaction. Two modes match the
// two deployments: native mode identifies the fee-paying signer of a SOL
// transfer, token mode identifies buyers of the watched mint from pre/post
// token balance deltas.

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const lamportsPerSOL = 1e9

// NativeSender returns the signer of tx and the net SOL it sent, provided
// the amount strictly exceeds minTransferSOL. Fee-only and no-op
// transactions fall below the floor and produce no candidate.
func NativeSender(tx *solana.Transaction, meta *rpc.TransactionMeta, keys []string, minTransferSOL float64) (Candidate, bool) {
	if tx == nil || meta == nil {
		return Candidate{}, false
	}

	signerIndex := -1
	for i, sig := range tx.Signatures {
		if sig != (solana.Signature{}) {
			signerIndex = i
			break
		}
	}
	if signerIndex < 0 || signerIndex >= len(keys) {
		return Candidate{}, false
	}
	if signerIndex >= len(meta.PreBalances) || signerIndex >= len(meta.PostBalances) {
		return Candidate{}, false
	}

	pre := meta.PreBalances[signerIndex]
	post := meta.PostBalances[signerIndex]
	if pre <= post {
		return Candidate{}, false
	}
	sent := (float64(pre) - float64(post) - float64(meta.Fee)) / lamportsPerSOL
	if sent <= minTransferSOL {
		return Candidate{}, false
	}

	return Candidate{Address: keys[signerIndex], AmountSOL: sent}, true
}

// TokenBuyers returns every owner whose post-balance of mint exceeds its
// pre-balance, in post-balance order. The pool's own address is excluded:
// tokens moving into the pool are not buys.
func TokenBuyers(meta *rpc.TransactionMeta, mint, poolAddress string) []string {
	if meta == nil {
		return nil
	}

	var buyers []string
	for _, post := range meta.PostTokenBalances {
		if post.Mint.String() != mint || post.Owner == nil {
			continue
		}
		owner := post.Owner.String()
		if owner == poolAddress {
			continue
		}

		preAmount := uint64(0)
		for _, pre := range meta.PreTokenBalances {
			if pre.Mint.String() == mint && pre.Owner != nil && pre.Owner.String() == owner {
				preAmount = rawAmount(pre.UiTokenAmount)
				break
			}
		}

		if rawAmount(post.UiTokenAmount) > preAmount {
			buyers = append(buyers, owner)
		}
	}
	return buyers
}

func rawAmount(v *rpc.UiTokenAmount) uint64 {
	if v == nil {
		return 0
	}
	n, err := strconv.ParseUint(v.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ReceiverOfOutgoing finds the first account credited by an outgoing
// transfer from sender, skipping sender itself and excluded. Used by the
// winner-call notifier.
func ReceiverOfOutgoing(meta *rpc.TransactionMeta, keys []string, sender, excluded string) (string, bool) {
	if meta == nil || len(keys) == 0 {
		return "", false
	}
	if keys[0] != sender {
		return "", false
	}
	for i := 0; i < len(meta.PostBalances) && i < len(meta.PreBalances) && i < len(keys); i++ {
		if meta.PostBalances[i] > meta.PreBalances[i] {
			receiver := keys[i]
			if receiver == sender || receiver == excluded {
				continue
			}
			return receiver, true
		}
	}
	return "", false
}
