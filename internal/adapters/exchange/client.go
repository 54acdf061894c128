package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultBanPeriod  = time.Minute
	maxRetries        = 2
	defaultRatePerSec = 10
)

// Client is the narrow exchange surface the ledger needs
type Client interface {
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchCurrencies(ctx context.Context) (map[string]CurrencyInfo, error)
	FetchDepositAddress(ctx context.Context, code, network string) (*DepositAddress, error)
	Withdraw(ctx context.Context, params WithdrawParams) (*WithdrawalRecord, error)
	FetchWithdrawals(ctx context.Context, code string) ([]WithdrawalRecord, error)
	Transfer(ctx context.Context, code string, amount decimal.Decimal, fromAccount, toAccount string) (*TransferRecord, error)
	FetchBalance(ctx context.Context) (*Balance, error)
}

// BanRecorder stores the time until which the exchange refuses our requests
type BanRecorder interface {
	Ban(ctx context.Context, until time.Time) error
}

// Config represents gateway client configuration
type Config struct {
	BaseURL           string
	Exchange          string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// GatewayClient talks JSON to an exchange gateway that fronts one exchange
type GatewayClient struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	bans        BanRecorder
	logger      *zap.Logger
}

// NewGatewayClient creates a new exchange gateway client. bans may be nil.
func NewGatewayClient(config Config, bans BanRecorder, logger *zap.Logger) *GatewayClient {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRatePerSec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &GatewayClient{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		bans:        bans,
		logger:      logger,
	}
}

// FetchTicker returns the latest ticker for symbol
func (c *GatewayClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	var resp Ticker
	q := url.Values{"symbol": {symbol}}
	if err := c.doRequest(ctx, http.MethodGet, "/ticker", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	return &resp, nil
}

// FetchCurrencies returns the exchange currency table keyed by code
func (c *GatewayClient) FetchCurrencies(ctx context.Context) (map[string]CurrencyInfo, error) {
	resp := make(map[string]CurrencyInfo)
	if err := c.doRequest(ctx, http.MethodGet, "/currencies", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch currencies: %w", err)
	}
	return resp, nil
}

// FetchDepositAddress returns the deposit address for code on network
func (c *GatewayClient) FetchDepositAddress(ctx context.Context, code, network string) (*DepositAddress, error) {
	q := url.Values{"code": {code}}
	if network != "" {
		q.Set("network", network)
	}
	var resp DepositAddress
	if err := c.doRequest(ctx, http.MethodGet, "/deposit-address", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch deposit address %s: %w", code, err)
	}
	if resp.Address == "" {
		return nil, ErrNoAddress
	}
	return &resp, nil
}

// Withdraw submits a withdrawal
func (c *GatewayClient) Withdraw(ctx context.Context, params WithdrawParams) (*WithdrawalRecord, error) {
	var resp WithdrawalRecord
	if err := c.doRequest(ctx, http.MethodPost, "/withdraw", nil, params, &resp); err != nil {
		return nil, fmt.Errorf("withdraw %s: %w", params.Code, err)
	}
	return &resp, nil
}

// FetchWithdrawals lists recent withdrawals for code
func (c *GatewayClient) FetchWithdrawals(ctx context.Context, code string) ([]WithdrawalRecord, error) {
	var resp []WithdrawalRecord
	q := url.Values{"code": {code}}
	if err := c.doRequest(ctx, http.MethodGet, "/withdrawals", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch withdrawals %s: %w", code, err)
	}
	return resp, nil
}

// Transfer moves funds between the exchange's own sub-accounts
func (c *GatewayClient) Transfer(ctx context.Context, code string, amount decimal.Decimal, fromAccount, toAccount string) (*TransferRecord, error) {
	body := map[string]interface{}{
		"code":   code,
		"amount": amount,
		"from":   fromAccount,
		"to":     toAccount,
	}
	var resp TransferRecord
	if err := c.doRequest(ctx, http.MethodPost, "/transfer", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("transfer %s %s->%s: %w", code, fromAccount, toAccount, err)
	}
	return &resp, nil
}

// FetchBalance returns account balances
func (c *GatewayClient) FetchBalance(ctx context.Context) (*Balance, error) {
	var resp Balance
	if err := c.doRequest(ctx, http.MethodGet, "/balance", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	return &resp, nil
}

func (c *GatewayClient) endpoint(path string, q url.Values) string {
	u := fmt.Sprintf("%s/exchanges/%s%s", c.config.BaseURL, url.PathEscape(c.config.Exchange), path)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *GatewayClient) doRequest(ctx context.Context, method, path string, q url.Values, body, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	fullURL := c.endpoint(path, q)

	// Only idempotent reads are retried.
	attempts := 1
	if method == http.MethodGet {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.config.APIKey != "" {
			req.Header.Set("X-API-Key", c.config.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			c.recordBan(ctx, resp.Header.Get("Retry-After"))
			return &ErrorResponse{StatusCode: resp.StatusCode, Message: "exchange rate limit exceeded"}
		}

		if resp.StatusCode >= 500 {
			lastErr = &ErrorResponse{StatusCode: resp.StatusCode, Message: "server error"}
			continue
		}

		if resp.StatusCode >= 400 {
			errResp := &ErrorResponse{StatusCode: resp.StatusCode}
			if json.Unmarshal(respBody, errResp) != nil || errResp.Message == "" {
				errResp.Message = truncate(string(respBody), 256)
			}
			errResp.StatusCode = resp.StatusCode
			return errResp
		}

		if response != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *GatewayClient) recordBan(ctx context.Context, retryAfter string) {
	period := defaultBanPeriod
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		period = time.Duration(secs) * time.Second
	}
	until := time.Now().Add(period)

	c.logger.Warn("Exchange rate limit hit, recording ban",
		zap.String("exchange", c.config.Exchange),
		zap.Time("until", until))

	if c.bans == nil {
		return
	}
	if err := c.bans.Ban(context.WithoutCancel(ctx), until); err != nil {
		c.logger.Error("Failed to record exchange ban", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
