// Package pricing resolves USD prices and conversion rates for wallet currencies.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// DefaultStablecoin is the quote currency used for ticker symbols
const DefaultStablecoin = "USDT"

// TickerSource fetches spot exchange tickers
type TickerSource interface {
	FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error)
}

// BanChecker reports whether the spot exchange is currently refusing requests
type BanChecker interface {
	IsBanned(ctx context.Context) (bool, error)
}

// MatchingEngine is the ecosystem order book. When the ecosystem is
// disabled a NoopMatchingEngine is injected.
type MatchingEngine interface {
	Enabled() bool
	Ticker(ctx context.Context, symbol string) (*exchange.Ticker, error)
}

// NoopMatchingEngine stands in for a missing ecosystem
type NoopMatchingEngine struct{}

func (NoopMatchingEngine) Enabled() bool { return false }

func (NoopMatchingEngine) Ticker(context.Context, string) (*exchange.Ticker, error) {
	return &exchange.Ticker{Last: decimal.Zero}, nil
}

// Oracle resolves USD prices for (currency, wallet type) pairs
type Oracle struct {
	currencies repositories.CurrencyRepository
	spot       TickerSource
	bans       BanChecker
	engine     MatchingEngine
	stablecoin string
	logger     *logger.Logger
}

// NewOracle creates a price oracle. engine may be nil, in which case the
// ecosystem is treated as disabled.
func NewOracle(
	currencies repositories.CurrencyRepository,
	spot TickerSource,
	bans BanChecker,
	engine MatchingEngine,
	stablecoin string,
	logger *logger.Logger,
) *Oracle {
	if engine == nil {
		engine = NoopMatchingEngine{}
	}
	if stablecoin == "" {
		stablecoin = DefaultStablecoin
	}
	return &Oracle{
		currencies: currencies,
		spot:       spot,
		bans:       bans,
		engine:     engine,
		stablecoin: entities.NormalizeCurrency(stablecoin),
		logger:     logger,
	}
}

// Stablecoin returns the reference quote currency
func (o *Oracle) Stablecoin() string {
	return o.stablecoin
}

// PriceInUSD returns the USD value of one unit of currency held in a wallet
// of the given type. With the ecosystem disabled ECO and FUTURES prices are
// returned as zero without error.
func (o *Oracle) PriceInUSD(ctx context.Context, currency string, walletType entities.WalletType) (decimal.Decimal, error) {
	currency = entities.NormalizeCurrency(currency)

	switch walletType {
	case entities.WalletTypeFiat:
		return o.fiatPrice(ctx, currency)
	case entities.WalletTypeSpot:
		if currency == o.stablecoin {
			return decimal.NewFromInt(1), nil
		}
		return o.spotPrice(ctx, currency)
	case entities.WalletTypeEco, entities.WalletTypeFutures:
		if currency == o.stablecoin {
			return decimal.NewFromInt(1), nil
		}
		return o.enginePrice(ctx, currency, walletType)
	default:
		return decimal.Zero, apperrors.ValidationError("wallet_type", fmt.Sprintf("unsupported wallet type %q", walletType))
	}
}

func (o *Oracle) fiatPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	c, err := o.currencies.GetCurrency(ctx, currency, entities.WalletTypeFiat)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return decimal.Zero, apperrors.PriceUnavailableError(currency, string(entities.WalletTypeFiat))
		}
		return decimal.Zero, fmt.Errorf("get fiat currency: %w", err)
	}
	if !c.Active || c.Price == nil || !c.Price.IsPositive() {
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(entities.WalletTypeFiat))
	}
	return *c.Price, nil
}

func (o *Oracle) spotPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	if o.bans != nil {
		banned, err := o.bans.IsBanned(ctx)
		if err != nil {
			o.logger.Warn("Failed to read exchange ban status", "error", err)
		}
		if banned {
			return decimal.Zero, apperrors.ServiceUnavailableError("exchange", nil)
		}
	}
	if o.spot == nil {
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(entities.WalletTypeSpot))
	}

	symbol := currency + "/" + o.stablecoin
	ticker, err := o.spot.FetchTicker(ctx, symbol)
	if err != nil {
		o.logger.Warn("Spot ticker fetch failed", "symbol", symbol, "error", apperrors.Sanitize(err.Error()))
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(entities.WalletTypeSpot))
	}
	if ticker == nil || !ticker.Last.IsPositive() {
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(entities.WalletTypeSpot))
	}
	return ticker.Last, nil
}

func (o *Oracle) enginePrice(ctx context.Context, currency string, walletType entities.WalletType) (decimal.Decimal, error) {
	if !o.engine.Enabled() {
		return decimal.Zero, nil
	}
	symbol := currency + "/" + o.stablecoin
	ticker, err := o.engine.Ticker(ctx, symbol)
	if err != nil {
		o.logger.Warn("Matching engine ticker fetch failed", "symbol", symbol, "error", err)
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(walletType))
	}
	if ticker == nil || ticker.Last.IsNegative() {
		return decimal.Zero, apperrors.PriceUnavailableError(currency, string(walletType))
	}
	return ticker.Last, nil
}

// ExchangeRate returns how many units of `to` one unit of `from` buys.
// Either price being zero or negative fails with an InvalidRate error.
func (o *Oracle) ExchangeRate(ctx context.Context, from string, fromType entities.WalletType, to string, toType entities.WalletType) (decimal.Decimal, error) {
	fromPrice, err := o.PriceInUSD(ctx, from, fromType)
	if err != nil {
		return decimal.Zero, err
	}
	toPrice, err := o.PriceInUSD(ctx, to, toType)
	if err != nil {
		return decimal.Zero, err
	}
	return Rate(fromPrice, toPrice, from, to)
}

// Rate derives the conversion rate from two USD prices as units of to per
// unit of from, so it divides fromPrice by toPrice. Inverting it turns a BTC
// to USD transfer at 60000 into 1/60000.
func Rate(fromPrice, toPrice decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if !fromPrice.IsPositive() || !toPrice.IsPositive() {
		return decimal.Zero, apperrors.InvalidRateError(from, to)
	}
	return fromPrice.Div(toPrice), nil
}
