package dexscreener

// Minimal DexScreener client: the buy-and-burn loop only needs the summed
// 5-minute USD volume of a mint across its solana pairs.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"clutch-protocol/internal/infra/retry"
)

const defaultBaseURL = "https://api.dexscreener.com/latest/dex/tokens"

type pairsResponse struct {
	Pairs []struct {
		ChainID string `json:"chainId"`
		Volume  struct {
			M5 float64 `json:"m5"`
		} `json:"volume"`
	} `json:"pairs"`
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient() *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

// Volume5mUSD sums the five-minute volume of every solana pair for mint.
func (c *Client) Volume5mUSD(ctx context.Context, mint string) (float64, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var total float64
	err := retry.Do(ctx, retry.Options{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("volume request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		if err != nil {
			return fmt.Errorf("failed to read volume response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &retry.HTTPError{StatusCode: resp.StatusCode, Body: body}
		}

		var parsed pairsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to unmarshal volume response: %w", err)
		}

		total = 0
		for _, pair := range parsed.Pairs {
			if pair.ChainID != "solana" {
				continue
			}
			total += pair.Volume.M5
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
