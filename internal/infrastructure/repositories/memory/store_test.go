package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	w.Balance = decimal.NewFromInt(100)
	store.AddWallet(w)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		require.NoError(t, repos.Wallets.UpdateBalance(ctx, w.ID, decimal.NewFromInt(1)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestWithinTx_Commits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	store.AddWallet(w)

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		return repos.Wallets.UpdateBalance(ctx, w.ID, decimal.NewFromInt(7))
	})
	require.NoError(t, err)

	got, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(7)))
}

func TestFailCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	store.AddWallet(w)
	store.FailCommits(1)

	update := func(repos repositories.Repositories) error {
		return repos.Wallets.UpdateBalance(ctx, w.ID, decimal.NewFromInt(3))
	}
	assert.ErrorIs(t, store.WithinTx(ctx, update), ErrInjectedCommit)
	require.NoError(t, store.WithinTx(ctx, update))
}

func TestWalletRepository_UniqueKey(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	userID := uuid.New()
	repos := store.Repositories()

	require.NoError(t, repos.Wallets.Create(ctx, entities.NewWallet(userID, "btc", entities.WalletTypeEco)))
	err := repos.Wallets.Create(ctx, entities.NewWallet(userID, "BTC", entities.WalletTypeEco))
	assert.True(t, apperrors.IsConflict(err))

	_, err = repos.Wallets.GetByKey(ctx, entities.WalletKey{UserID: userID, Currency: "BTC", Type: entities.WalletTypeSpot})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	store.AddWallet(w)

	got, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	got.Balance = decimal.NewFromInt(999)

	again, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, again.Balance.IsZero())
}

func TestPrivateLedger_AddDifferenceUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	key := entities.PrivateLedgerKey{WalletID: uuid.New(), Currency: "MASH", Chain: "ETH", Network: "mainnet"}
	repos := store.Repositories()

	_, err := repos.PrivateLedger.AddDifference(ctx, key, decimal.NewFromInt(-5))
	require.NoError(t, err)
	entry, err := repos.PrivateLedger.AddDifference(ctx, key, decimal.NewFromInt(2))
	require.NoError(t, err)

	assert.True(t, entry.OffchainDifference.Equal(decimal.NewFromInt(-3)))
	entries, err := repos.PrivateLedger.ListByWalletID(ctx, key.WalletID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCatalog(t *testing.T) {
	catalog := NewCatalog(&entities.Currency{Code: "usd", WalletType: entities.WalletTypeFiat, Active: true})

	cur, err := catalog.GetCurrency(context.Background(), "USD", entities.WalletTypeFiat)
	require.NoError(t, err)
	assert.Equal(t, "USD", cur.Code)

	_, err = catalog.GetCurrency(context.Background(), "USD", entities.WalletTypeSpot)
	assert.True(t, apperrors.IsNotFound(err))
}
