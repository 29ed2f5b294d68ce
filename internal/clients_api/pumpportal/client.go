package pumpportal

// Client for the pumpportal trade-local endpoint. The endpoint answers a
// trade request with a binary-encoded unsigned transaction; signing and
// submission stay with the caller. Transport is guarded the same way as
// every outbound client here: rate limiter, circuit breaker, bounded
// retry on retryable statuses.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/infra/retry"
)

const DefaultEndpoint = "https://pumpportal.fun/api/trade-local"

// TradeRequest mirrors the endpoint's JSON contract. Fields not relevant
// to an action are left empty and omitted.
type TradeRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"`
	Mint             string  `json:"mint,omitempty"`
	DenominatedInSol string  `json:"denominatedInSol,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	Slippage         int     `json:"slippage,omitempty"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool,omitempty"`
}

type Client struct {
	endpoint    string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:    endpoint,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 4),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "PumpPortal",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Trade posts a trade request and returns the unsigned wire transaction on
// 200. Any other status is an HTTPError; callers abort only their own
// sub-step on it.
func (c *Client) Trade(ctx context.Context, req TradeRequest) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var raw []byte
	_, err := c.breaker.Execute(func() (interface{}, error) {
		err := retry.Do(ctx, retry.Options{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, func() error {
			body, err := c.post(ctx, req)
			if err != nil {
				return err
			}
			raw = body
			return nil
		})
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, req TradeRequest) ([]byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("trade request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read trade response: %w", err)
	}

	log.LogDebug("Trade endpoint response",
		zap.String("action", req.Action),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       body,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

// BuildClaimTransaction requests an unsigned collectCreatorFee transaction
// for the actor.
func (c *Client) BuildClaimTransaction(ctx context.Context, actor string, priorityFee float64) ([]byte, error) {
	return c.Trade(ctx, TradeRequest{
		PublicKey:   actor,
		Action:      "collectCreatorFee",
		PriorityFee: priorityFee,
	})
}

// BuildBuyTransaction requests an unsigned SOL-denominated buy.
func (c *Client) BuildBuyTransaction(ctx context.Context, actor, mint string, amountSOL float64, slippage int, priorityFee float64, pool string) ([]byte, error) {
	return c.Trade(ctx, TradeRequest{
		PublicKey:        actor,
		Action:           "buy",
		Mint:             mint,
		DenominatedInSol: "true",
		Amount:           amountSOL,
		Slippage:         slippage,
		PriorityFee:      priorityFee,
		Pool:             pool,
	})
}
