package watch

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Ledger is the read surface the pipeline needs. *ledger.Client satisfies
// it; tests plug in fakes.
type Ledger interface {
	ListSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
	ListSignaturesBefore(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error)
	ResolveAccountKeys(ctx context.Context, tx *solana.Transaction, meta *rpc.TransactionMeta) ([]string, error)
	TokenAccountsByProgram(ctx context.Context, owner, program solana.PublicKey) ([]*rpc.TokenAccount, error)
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Candidate is an address that moved value in a scanned transaction: the
// signer of an outgoing native transfer, or a buyer of the watched mint.
type Candidate struct {
	Address   string
	AmountSOL float64
	BlockTime int64
	Signature string
}

// HoldingSnapshot is a candidate's current position in the watched mint.
// Always derived fresh from chain state, never cached.
type HoldingSnapshot struct {
	Address         string
	Mint            string
	Balance         float64
	HoldingDuration time.Duration
}
