package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/infrastructure/repositories/memory"
)

type MockProvider struct {
	mock.Mock
	exchange.Provider
}

func (m *MockProvider) ID() exchange.ProviderID { return exchange.ProviderKucoin }

func (m *MockProvider) DepositAddress(ctx context.Context, currency, chain string) (*exchange.DepositAddress, error) {
	args := m.Called(ctx, currency, chain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.DepositAddress), args.Error(1)
}

func newService(t *testing.T, provider *MockProvider) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewCatalog(&entities.Currency{
		Code:       "USDT",
		WalletType: entities.WalletTypeSpot,
		Active:     true,
		Networks: map[string]entities.NetworkConfig{
			"TRC20": {Active: true, Deposit: true, Withdraw: true},
			"ERC20": {Active: true, Deposit: false, Withdraw: true},
		},
	})
	svc := NewService(store, catalog, exchange.NewRegistry(provider), Config{DepositProvider: exchange.ProviderKucoin}, zap.NewNop())
	return svc, store
}

func TestDepositAddress_Spot(t *testing.T) {
	provider := &MockProvider{}
	tag := "memo-1"
	provider.On("DepositAddress", mock.Anything, "USDT", "TRC20").
		Return(&exchange.DepositAddress{Currency: "USDT", Address: "TAddr", Tag: &tag, Network: "TRX"}, nil)
	svc, _ := newService(t, provider)

	addr, err := svc.DepositAddress(context.Background(), uuid.New(), entities.WalletTypeSpot, "usdt", "TRC20")
	require.NoError(t, err)
	assert.Equal(t, "TAddr", addr.Address)
	assert.Equal(t, "TRX", addr.Network)
	assert.Equal(t, "memo-1", *addr.Tag)

	_, err = svc.DepositAddress(context.Background(), uuid.New(), entities.WalletTypeSpot, "USDT", "ERC20")
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestDepositAddress_ProviderFailure(t *testing.T) {
	provider := &MockProvider{}
	provider.On("DepositAddress", mock.Anything, "USDT", "TRC20").Return(nil, errors.New("timeout"))
	svc, _ := newService(t, provider)

	_, err := svc.DepositAddress(context.Background(), uuid.New(), entities.WalletTypeSpot, "USDT", "TRC20")
	assert.True(t, apperrors.IsServiceUnavailable(err))
}

func TestDepositAddress_Eco(t *testing.T) {
	svc, store := newService(t, &MockProvider{})
	userID := uuid.New()
	addr, network := "0xabc", "mainnet"
	w := entities.NewWallet(userID, "MASH", entities.WalletTypeEco)
	w.Addresses = entities.ChainBalances{"ETH": {Address: &addr, Network: &network, Balance: decimal.Zero}}
	store.AddWallet(w)

	got, err := svc.DepositAddress(context.Background(), userID, entities.WalletTypeEco, "MASH", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Address)
	assert.Equal(t, "mainnet", got.Network)

	_, err = svc.DepositAddress(context.Background(), userID, entities.WalletTypeEco, "MASH", "BSC")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.DepositAddress(context.Background(), userID, entities.WalletTypeFiat, "USD", "SWIFT")
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestGetTransaction_HidesOtherUsers(t *testing.T) {
	svc, store := newService(t, &MockProvider{})
	owner := uuid.New()
	tx := &entities.Transaction{
		ID:       uuid.New(),
		UserID:   owner,
		WalletID: uuid.New(),
		Type:     entities.TransactionTypeDeposit,
		Amount:   decimal.NewFromInt(5),
		Status:   entities.TransactionStatusCompleted,
	}
	require.NoError(t, store.Repositories().Transactions.Create(context.Background(), tx))

	got, err := svc.GetTransaction(context.Background(), owner, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = svc.GetTransaction(context.Background(), uuid.New(), tx.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListAndDeactivate(t *testing.T) {
	svc, store := newService(t, &MockProvider{})
	userID := uuid.New()
	w := entities.NewWallet(userID, "USDT", entities.WalletTypeSpot)
	store.AddWallet(w)
	store.AddWallet(entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot))

	wallets, err := svc.ListWallets(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)

	require.NoError(t, svc.Deactivate(context.Background(), w.ID))
	wallets, err = svc.ListWallets(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, wallets[0].IsActive())
}
