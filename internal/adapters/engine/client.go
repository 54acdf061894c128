// Package engine is the HTTP client for the ecosystem matching engine.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/pkg/circuitbreaker"
)

const defaultTimeout = 10 * time.Second

// Config represents matching engine client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client reads tickers from the matching engine
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a matching engine client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "matching-engine",
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		}),
		logger: logger,
	}
}

// Enabled reports that a real engine is wired in
func (c *Client) Enabled() bool {
	return true
}

// Ticker returns the latest ticker for symbol
func (c *Client) Ticker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	var ticker exchange.Ticker
	err := c.breaker.Execute(ctx, func() error {
		endpoint := fmt.Sprintf("%s/api/v1/ticker?symbol=%s", c.config.BaseURL, url.QueryEscape(symbol))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("matching engine status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(body, &ticker); err != nil {
			return fmt.Errorf("unmarshal ticker: %w", err)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Matching engine ticker failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}
	return &ticker, nil
}
