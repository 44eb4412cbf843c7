package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/config"
)

// FallbackPrice is returned whenever the pricing dependency cannot be
// reached: breaker open, retries exhausted, or caller context done.
const FallbackPrice = 0.0

// Client is the resilient price lookup. Every attempt goes through the
// circuit breaker; the retry loop wraps repeated attempts; each attempt
// is bounded by its own timeout. GetPrice never returns an error: price
// is enrichment, so unavailability degrades to FallbackPrice instead of
// propagating failure.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *CircuitBreaker
	maxAttempts int
	retryDelay  time.Duration
	callTimeout time.Duration
}

func NewClient(cfg config.Config) *Client {
	// no client-level timeout; each attempt is bounded by its own context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		baseURL:     cfg.PricingURL,
		httpClient:  httpClient,
		breaker:     NewCircuitBreaker(cfg.BreakerWindowSize, cfg.BreakerFailureRatio, cfg.BreakerCooldown),
		maxAttempts: cfg.RetryMaxAttempts,
		retryDelay:  cfg.RetryDelay,
		callTimeout: cfg.CallTimeout,
	}
}

func (c *Client) GetPrice(ctx context.Context, bookID int64) float64 {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if !c.breaker.Allow() {
			log.Warn().Int64("book_id", bookID).Msg("pricing short-circuited, using fallback")
			return FallbackPrice
		}

		price, err := c.fetch(ctx, bookID)
		c.breaker.Record(err == nil)
		if err == nil {
			return price
		}

		log.Warn().
			Err(err).
			Int64("book_id", bookID).
			Int("attempt", attempt).
			Msg("price lookup failed")

		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return FallbackPrice
			}
		}
	}

	log.Warn().Int64("book_id", bookID).Msg("price lookup attempts exhausted, using fallback")
	return FallbackPrice
}

// BreakerState exposes the breaker state for observability.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, bookID int64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/prices/%d", c.baseURL, bookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricing service returned status %s", resp.Status)
	}

	var price float64
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return price, nil
}
