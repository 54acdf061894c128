package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/pkg/logger"
)

type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) GetCurrency(ctx context.Context, code string, walletType entities.WalletType) (*entities.Currency, error) {
	args := m.Called(ctx, code, walletType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Currency), args.Error(1)
}

type MockTickerSource struct {
	mock.Mock
}

func (m *MockTickerSource) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Ticker), args.Error(1)
}

type stubBans bool

func (b stubBans) IsBanned(context.Context) (bool, error) { return bool(b), nil }

type stubEngine map[string]decimal.Decimal

func (stubEngine) Enabled() bool { return true }

func (e stubEngine) Ticker(_ context.Context, symbol string) (*exchange.Ticker, error) {
	last, ok := e[symbol]
	if !ok {
		return nil, errors.New("no market")
	}
	return &exchange.Ticker{Symbol: symbol, Last: last}, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPriceInUSD_Fiat(t *testing.T) {
	ctx := context.Background()
	repo := &MockCurrencyRepository{}
	repo.On("GetCurrency", ctx, "EUR", entities.WalletTypeFiat).
		Return(&entities.Currency{Code: "EUR", Active: true, Price: dec("1.08")}, nil)
	repo.On("GetCurrency", ctx, "GBP", entities.WalletTypeFiat).
		Return(&entities.Currency{Code: "GBP", Active: false, Price: dec("1.27")}, nil)
	repo.On("GetCurrency", ctx, "JPY", entities.WalletTypeFiat).
		Return(&entities.Currency{Code: "JPY", Active: true}, nil)
	repo.On("GetCurrency", ctx, "XXX", entities.WalletTypeFiat).
		Return(nil, apperrors.NotFoundError("CURRENCY"))

	o := NewOracle(repo, nil, nil, nil, "", logger.NewNop())

	price, err := o.PriceInUSD(ctx, "eur", entities.WalletTypeFiat)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.08")))

	for _, code := range []string{"GBP", "JPY", "XXX"} {
		_, err := o.PriceInUSD(ctx, code, entities.WalletTypeFiat)
		assert.True(t, apperrors.IsPriceUnavailable(err), code)
	}
}

func TestPriceInUSD_Spot(t *testing.T) {
	ctx := context.Background()

	t.Run("stablecoin short-circuits", func(t *testing.T) {
		spot := &MockTickerSource{}
		o := NewOracle(nil, spot, stubBans(true), nil, "USDT", logger.NewNop())

		price, err := o.PriceInUSD(ctx, "USDT", entities.WalletTypeSpot)

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(1)))
		spot.AssertNotCalled(t, "FetchTicker", mock.Anything, mock.Anything)
	})

	t.Run("banned is service unavailable", func(t *testing.T) {
		spot := &MockTickerSource{}
		o := NewOracle(nil, spot, stubBans(true), nil, "USDT", logger.NewNop())

		_, err := o.PriceInUSD(ctx, "BTC", entities.WalletTypeSpot)

		assert.True(t, apperrors.IsServiceUnavailable(err))
		assert.True(t, apperrors.IsRetryable(err))
		spot.AssertNotCalled(t, "FetchTicker", mock.Anything, mock.Anything)
	})

	t.Run("ticker last price", func(t *testing.T) {
		spot := &MockTickerSource{}
		spot.On("FetchTicker", ctx, "BTC/USDT").Return(&exchange.Ticker{Last: decimal.NewFromInt(60000)}, nil)
		o := NewOracle(nil, spot, stubBans(false), nil, "USDT", logger.NewNop())

		price, err := o.PriceInUSD(ctx, "btc", entities.WalletTypeSpot)

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(60000)))
	})

	t.Run("fetch error is price unavailable", func(t *testing.T) {
		spot := &MockTickerSource{}
		spot.On("FetchTicker", ctx, "BTC/USDT").Return(nil, errors.New("timeout"))
		o := NewOracle(nil, spot, stubBans(false), nil, "USDT", logger.NewNop())

		_, err := o.PriceInUSD(ctx, "BTC", entities.WalletTypeSpot)

		assert.True(t, apperrors.IsPriceUnavailable(err))
	})
}

func TestPriceInUSD_EcosystemDisabled(t *testing.T) {
	o := NewOracle(nil, nil, nil, nil, "USDT", logger.NewNop())

	price, err := o.PriceInUSD(context.Background(), "MASH", entities.WalletTypeEco)

	require.NoError(t, err)
	assert.True(t, price.IsZero())

	_, err = o.ExchangeRate(context.Background(), "MASH", entities.WalletTypeEco, "USDT", entities.WalletTypeSpot)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRate)
}

func TestExchangeRate(t *testing.T) {
	ctx := context.Background()
	engine := stubEngine{
		"ETH/USDT": decimal.NewFromInt(3000),
		"BTC/USDT": decimal.NewFromInt(60000),
	}
	o := NewOracle(nil, nil, nil, engine, "USDT", logger.NewNop())

	t.Run("units of target per unit of source", func(t *testing.T) {
		rate, err := o.ExchangeRate(ctx, "BTC", entities.WalletTypeEco, "ETH", entities.WalletTypeFutures)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(20)), "got %s", rate)
	})

	t.Run("symmetry", func(t *testing.T) {
		ab, err := o.ExchangeRate(ctx, "BTC", entities.WalletTypeEco, "ETH", entities.WalletTypeEco)
		require.NoError(t, err)
		ba, err := o.ExchangeRate(ctx, "ETH", entities.WalletTypeEco, "BTC", entities.WalletTypeEco)
		require.NoError(t, err)

		product, _ := ab.Mul(ba).Float64()
		assert.InDelta(t, 1.0, product, 1e-12)
	})

	t.Run("unknown market", func(t *testing.T) {
		_, err := o.ExchangeRate(ctx, "DOGE", entities.WalletTypeEco, "ETH", entities.WalletTypeEco)
		assert.True(t, apperrors.IsPriceUnavailable(err))
	})
}

func TestRate(t *testing.T) {
	_, err := Rate(decimal.Zero, decimal.NewFromInt(1), "A", "B")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRate)

	_, err = Rate(decimal.NewFromInt(1), decimal.NewFromInt(-1), "A", "B")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRate)

	rate, err := Rate(decimal.NewFromInt(2), decimal.NewFromInt(4), "A", "B")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.5")))
}
