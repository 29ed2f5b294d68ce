package ledger

// Read/submit adapter over the Solana JSON-RPC API. Every call goes through
// the same funnel as the other outbound clients here: client-side rate
// limiting, a circuit breaker, and bounded exponential backoff on 429.
// Reads that fail for any other reason degrade to "absent" so one pruned or
// unfinalized transaction never aborts a whole scan.

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clutch-protocol/internal/config"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/infra/retry"
)

const lamportsPerSOL = 1e9

type Client struct {
	rpc         *rpc.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewClient(cfg config.RPCConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SolanaRPC",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		rpc:         rpc.New(cfg.Endpoint),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:     breaker,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase(),
		backoffMax:  cfg.BackoffMax(),
	}
}

// do funnels one RPC call through the limiter, the breaker, and the 429
// backoff loop.
func (c *Client) do(ctx context.Context, label string, fn func() error) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			err := fn()
			if err == nil {
				return nil, nil
			}
			if !retry.IsRateLimited(err) || attempt == c.maxRetries {
				return nil, err
			}
			sleep := retry.BackoffDelay(attempt, c.backoffBase, c.backoffMax)
			log.LogDebug("RPC rate limited, backing off",
				zap.String("call", label),
				zap.Int("attempt", attempt),
				zap.Duration("sleep", sleep))
			t := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		return nil, nil
	})
	return err
}

// ListSignatures returns up to limit recent signatures for address,
// newest-first as the node reports them. Failed transactions are dropped.
func (c *Client) ListSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	var out []*rpc.TransactionSignature
	err := c.do(ctx, "getSignaturesForAddress", func() error {
		sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		out = out[:0]
		for _, sig := range sigs {
			if sig.Err == nil {
				out = append(out, sig)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures for %s: %w", address, err)
	}
	return out, nil
}

// ListSignaturesBefore pages backwards through an address's history.
func (c *Client) ListSignaturesBefore(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]*rpc.TransactionSignature, error) {
	var out []*rpc.TransactionSignature
	err := c.do(ctx, "getSignaturesForAddress", func() error {
		sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Before:     before,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		out = sigs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to page signatures for %s: %w", address, err)
	}
	return out, nil
}

// GetTransaction fetches one confirmed transaction. Absence (pruned, not
// yet finalized, malformed) comes back as (nil, nil); only rate limiting is
// retried, nothing else propagates.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	version := uint64(0)
	var out *rpc.GetTransactionResult
	err := c.do(ctx, "getTransaction", func() error {
		res, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &version,
		})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.LogDebug("Transaction unavailable, treating as absent",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, nil
	}
	return out, nil
}

// TokenAccountsByProgram lists the owner's token accounts under one token
// program variant (legacy or Token-2022).
func (c *Client) TokenAccountsByProgram(ctx context.Context, owner, program solana.PublicKey) ([]*rpc.TokenAccount, error) {
	var out []*rpc.TokenAccount
	err := c.do(ctx, "getTokenAccountsByOwner", func() error {
		res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: &program},
			&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
		)
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts for %s: %w", owner, err)
	}
	return out, nil
}

// MintDecimals reads the decimal scale of a mint from its supply info.
func (c *Client) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	var decimals uint8
	err := c.do(ctx, "getTokenSupply", func() error {
		res, err := c.rpc.GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		if res.Value == nil {
			return fmt.Errorf("empty token supply for %s", mint)
		}
		decimals = res.Value.Decimals
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get mint decimals for %s: %w", mint, err)
	}
	return decimals, nil
}

// NativeBalance returns the lamport balance of an account.
func (c *Client) NativeBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var balance uint64
	err := c.do(ctx, "getBalance", func() error {
		res, err := c.rpc.GetBalance(ctx, address, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		balance = res.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}
	return balance, nil
}

const lookupTableHeaderLen = 56

// LookupTable fetches an address lookup table account and returns its
// stored addresses, index-aligned with the on-chain table.
func (c *Client) LookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	var data []byte
	err := c.do(ctx, "getAccountInfo", func() error {
		res, err := c.rpc.GetAccountInfo(ctx, table)
		if err != nil {
			return err
		}
		if res.Value == nil {
			return fmt.Errorf("lookup table %s not found", table)
		}
		data = res.Value.Data.GetBinary()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lookup table %s: %w", table, err)
	}
	if len(data) < lookupTableHeaderLen {
		return nil, fmt.Errorf("lookup table %s too short: %d bytes", table, len(data))
	}

	body := data[lookupTableHeaderLen:]
	addresses := make(solana.PublicKeySlice, 0, len(body)/32)
	for i := 0; i+32 <= len(body); i += 32 {
		addresses = append(addresses, solana.PublicKeyFromBytes(body[i:i+32]))
	}
	return addresses, nil
}

// SignAndSendRaw deserializes a pre-built wire transaction (e.g. from the
// trade endpoint), signs it with signer, and submits it.
func (c *Client) SignAndSendRaw(ctx context.Context, raw []byte, signer solana.PrivateKey) (solana.Signature, error) {
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to deserialize transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return c.send(ctx, tx)
}

// SendInstructions builds, signs, and submits a transaction paying with
// signer.
func (c *Client) SendInstructions(ctx context.Context, signer solana.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	var blockhash solana.Hash
	err := c.do(ctx, "getLatestBlockhash", func() error {
		recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		blockhash = recent.Value.Blockhash
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return c.send(ctx, tx)
}

func (c *Client) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.do(ctx, "sendTransaction", func() error {
		s, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		sig = s
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// LamportsToSOL converts raw lamports to SOL units.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / lamportsPerSOL
}
