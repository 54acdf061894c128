package repositories

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	domainrepos "github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/ledger"
	"github.com/rail-service/ledger_service/internal/infrastructure/config"
	"github.com/rail-service/ledger_service/internal/infrastructure/database"
)

// getEnvOrSkip returns environment variable value or skips the test if not found
func getEnvOrSkip(t *testing.T, key string) string {
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("Environment variable %s is required for integration tests", key)
	}
	return value
}

func setupStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := getEnvOrSkip(t, "TEST_DATABASE_URL")

	db, err := database.NewConnection(config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db.DB, "file://../../../migrations"))

	return NewStore(db, zap.NewNop()), db
}

func createUser(t *testing.T, db *sqlx.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO users (id, email, first_name) VALUES ($1, $2, 'Test')`, id, id.String()+"@example.com")
	require.NoError(t, err)
	return id
}

func TestStore_WalletLifecycle(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	repos := store.Repositories()

	addr, network := "0xabc", "mainnet"
	w := entities.NewWallet(userID, "mash", entities.WalletTypeEco)
	w.Addresses = entities.ChainBalances{"ETH": {Address: &addr, Network: &network, Balance: decimal.NewFromInt(5)}}
	require.NoError(t, repos.Wallets.Create(ctx, w))

	err := repos.Wallets.Create(ctx, entities.NewWallet(userID, "MASH", entities.WalletTypeEco))
	assert.True(t, apperrors.IsConflict(err))

	got, err := repos.Wallets.GetByKey(ctx, entities.WalletKey{UserID: userID, Currency: "MASH", Type: entities.WalletTypeEco})
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, "0xabc", *got.Addresses["ETH"].Address)
	assert.True(t, got.Addresses["ETH"].Balance.Equal(decimal.NewFromInt(5)))

	require.NoError(t, repos.Wallets.UpdateBalance(ctx, w.ID, decimal.RequireFromString("12.5")))
	require.NoError(t, repos.Wallets.Deactivate(ctx, w.ID))
	got, err = repos.Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, got.IsActive())

	_, err = repos.Wallets.GetByID(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_DuplicateWalletKeepsTxUsable(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	key := entities.WalletKey{UserID: userID, Currency: "USDT", Type: entities.WalletTypeSpot}
	first := entities.NewWallet(userID, "USDT", entities.WalletTypeSpot)
	require.NoError(t, store.Repositories().Wallets.Create(ctx, first))

	err := store.WithinTx(ctx, func(repos domainrepos.Repositories) error {
		err := repos.Wallets.Create(ctx, entities.NewWallet(userID, "USDT", entities.WalletTypeSpot))
		assert.True(t, apperrors.IsConflict(err))

		got, err := repos.Wallets.GetByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		return repos.Wallets.UpdateBalance(ctx, got.ID, decimal.NewFromInt(7))
	})
	require.NoError(t, err)

	got, err := store.Repositories().Wallets.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(7)))
}

func TestStore_ConcurrentGetOrCreateWallet(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	key := entities.WalletKey{UserID: userID, Currency: "USD", Type: entities.WalletTypeFiat}

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 8)
	errs := make([]error, len(ids))
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.WithinTx(ctx, func(repos domainrepos.Repositories) error {
				w, err := ledger.GetOrCreateWallet(ctx, repos.Wallets, key)
				if err != nil {
					return err
				}
				ids[i] = w.ID
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	w := entities.NewWallet(userID, "USDT", entities.WalletTypeSpot)
	require.NoError(t, store.Repositories().Wallets.Create(ctx, w))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(repos domainrepos.Repositories) error {
		locked, err := repos.Wallets.GetForUpdate(ctx, w.ID)
		require.NoError(t, err)
		require.NoError(t, repos.Wallets.UpdateBalance(ctx, locked.ID, decimal.NewFromInt(100)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestStore_TransactionMetadataAndProfit(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	w := entities.NewWallet(userID, "USDT", entities.WalletTypeSpot)
	repos := store.Repositories()
	require.NoError(t, repos.Wallets.Create(ctx, w))

	tx := &entities.Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		WalletID: w.ID,
		Type:     entities.TransactionTypeWithdraw,
		Amount:   decimal.NewFromInt(100),
		Fee:      decimal.RequireFromString("0.5"),
		Status:   entities.TransactionStatusPending,
		Metadata: entities.TransactionMetadata{
			Kind: entities.MetadataKindWithdrawal,
			Withdrawal: &entities.WithdrawalMetadata{
				Provider:       "binance",
				Chain:          "TRC20",
				ToAddress:      "TAddr",
				InternalFee:    decimal.RequireFromString("0.5"),
				NetAmount:      decimal.NewFromInt(99),
				TotalDeduction: decimal.RequireFromString("100.5"),
			},
		},
	}
	require.NoError(t, repos.Transactions.Create(ctx, tx))
	require.NoError(t, repos.AdminProfits.Create(ctx, &entities.AdminProfit{
		ID:            uuid.New(),
		Amount:        decimal.RequireFromString("0.5"),
		Currency:      "USDT",
		Type:          entities.AdminProfitTypeWithdraw,
		TransactionID: tx.ID,
	}))

	ref := "wd-1"
	require.NoError(t, tx.TransitionTo(entities.TransactionStatusProcessing))
	tx.ReferenceID = &ref
	require.NoError(t, repos.Transactions.Update(ctx, tx))

	got, err := repos.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusProcessing, got.Status)
	assert.Equal(t, "wd-1", *got.ReferenceID)
	require.NotNil(t, got.Metadata.Withdrawal)
	assert.True(t, got.Metadata.Withdrawal.TotalDeduction.Equal(decimal.RequireFromString("100.5")))

	pending, err := repos.Transactions.ListByStatus(ctx, entities.TransactionTypeWithdraw,
		[]entities.TransactionStatus{entities.TransactionStatusProcessing}, 1000)
	require.NoError(t, err)
	found := false
	for _, p := range pending {
		found = found || p.ID == tx.ID
	}
	assert.True(t, found)

	require.NoError(t, repos.AdminProfits.DeleteByTransactionID(ctx, tx.ID))
	_, err = repos.AdminProfits.GetByTransactionID(ctx, tx.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_PrivateLedgerUpsertAdds(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	w := entities.NewWallet(userID, "MASH", entities.WalletTypeEco)
	repos := store.Repositories()
	require.NoError(t, repos.Wallets.Create(ctx, w))

	key := entities.PrivateLedgerKey{WalletID: w.ID, Currency: "MASH", Chain: "ETH", Network: "mainnet"}
	_, err := repos.PrivateLedger.AddDifference(ctx, key, decimal.NewFromInt(-30))
	require.NoError(t, err)
	entry, err := repos.PrivateLedger.AddDifference(ctx, key, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, entry.OffchainDifference.Equal(decimal.NewFromInt(-20)))

	entries, err := repos.PrivateLedger.ListByWalletID(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
