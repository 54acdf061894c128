package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/infrastructure/repositories/memory"
	"github.com/rail-service/ledger_service/pkg/logger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name      string
		balance   string
		delta     string
		precision entities.Precision
		expected  string
	}{
		{"rounds to precision", "10", "-3.123456789", 2, "6.88"},
		{"credit", "1.5", "0.25", 8, "1.75"},
		{"clamps at zero", "1", "-2", 8, "0"},
		{"out of range precision uses default", "0", "0.123456789", entities.Precision(25), "0.12345679"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDelta(d(tt.balance), d(tt.delta), tt.precision)
			assert.True(t, got.Equal(d(tt.expected)), "got %s", got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestDebit_RefusesOverdraft(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	w.Balance = d("5")
	store.AddWallet(w)

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		wallet, err := repos.Wallets.GetForUpdate(ctx, w.ID)
		require.NoError(t, err)
		return Debit(ctx, repos.Wallets, wallet, d("5.00000001"), 8)
	})
	assert.True(t, apperrors.IsInsufficientFunds(err))

	got, err := store.Repositories().Wallets.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(d("5")))
}

func TestDebitCredit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	a := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	a.Balance = d("10")
	b := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeEco)
	store.AddWallet(a)
	store.AddWallet(b)

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		locked, err := LockWallets(ctx, repos.Wallets, b.ID, a.ID, a.ID)
		if err != nil {
			return err
		}
		require.Len(t, locked, 2)
		if err := Debit(ctx, repos.Wallets, locked[a.ID], d("4"), 8); err != nil {
			return err
		}
		return Credit(ctx, repos.Wallets, locked[b.ID], d("4"), 8)
	})
	require.NoError(t, err)

	gotA, _ := store.Repositories().Wallets.GetByID(ctx, a.ID)
	gotB, _ := store.Repositories().Wallets.GetByID(ctx, b.ID)
	assert.True(t, gotA.Balance.Add(gotB.Balance).Equal(d("10")))
	assert.True(t, gotB.Balance.Equal(d("4")))
}

func TestDebit_InactiveWallet(t *testing.T) {
	w := entities.NewWallet(uuid.New(), "USDT", entities.WalletTypeSpot)
	w.Balance = d("10")
	w.Status = entities.WalletStatusInactive

	err := Debit(context.Background(), nil, w, d("1"), 8)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestGetOrCreateWallet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	key := entities.WalletKey{UserID: uuid.New(), Currency: "USD", Type: entities.WalletTypeFiat}

	first, err := GetOrCreateWallet(ctx, store.Repositories().Wallets, key)
	require.NoError(t, err)
	assert.True(t, first.Balance.IsZero())
	assert.True(t, first.IsActive())

	second, err := GetOrCreateWallet(ctx, store.Repositories().Wallets, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func strptr(s string) *string { return &s }

func ecoWallet(balances map[string]string) *entities.Wallet {
	w := entities.NewWallet(uuid.New(), "MASH", entities.WalletTypeEco)
	w.Addresses = make(entities.ChainBalances)
	total := decimal.Zero
	for chain, b := range balances {
		w.Addresses[chain] = entities.ChainBalance{
			Address: strptr("0x" + chain),
			Network: strptr("mainnet"),
			Balance: d(b),
		}
		total = total.Add(d(b))
	}
	w.Balance = total
	return w
}

func newPrivateLedger() *PrivateLedger {
	return NewPrivateLedger(map[string]string{
		"ETH":   "mainnet",
		"BSC":   "mainnet",
		"MATIC": "mainnet",
	}, logger.NewNop())
}

func TestTransferAcrossChains_GreedyAndConserving(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	from := ecoWallet(map[string]string{"ETH": "5", "BSC": "3", "MATIC": "3"})
	to := entities.NewWallet(uuid.New(), "MASH", entities.WalletTypeEco)
	store.AddWallet(from)
	store.AddWallet(to)
	pl := newPrivateLedger()

	var moves []ChainMove
	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		var err error
		moves, err = pl.TransferAcrossChains(ctx, repos, from, to, d("7"))
		return err
	})
	require.NoError(t, err)

	require.Len(t, moves, 2)
	assert.Equal(t, "ETH", moves[0].Chain)
	assert.True(t, moves[0].Amount.Equal(d("5")))
	assert.Equal(t, "BSC", moves[1].Chain, "ties break on chain name")
	assert.True(t, moves[1].Amount.Equal(d("2")))

	gotFrom, _ := store.Repositories().Wallets.GetByID(ctx, from.ID)
	gotTo, _ := store.Repositories().Wallets.GetByID(ctx, to.ID)
	assert.True(t, gotFrom.Addresses.Total().Equal(d("4")))
	assert.True(t, gotTo.Addresses.Total().Equal(d("7")))
	assert.True(t, gotFrom.Addresses.Total().Add(gotTo.Addresses.Total()).Equal(d("11")))

	dest := gotTo.Addresses["ETH"]
	assert.Nil(t, dest.Address)
	assert.Nil(t, dest.Network)

	fromEntries, err := store.Repositories().PrivateLedger.ListByWalletID(ctx, from.ID)
	require.NoError(t, err)
	toEntries, err := store.Repositories().PrivateLedger.ListByWalletID(ctx, to.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range append(fromEntries, toEntries...) {
		sum = sum.Add(e.OffchainDifference)
		assert.Equal(t, "mainnet", e.Network)
	}
	assert.True(t, sum.IsZero())
}

func TestTransferAcrossChains_Insufficient(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	from := ecoWallet(map[string]string{"ETH": "1", "BSC": "1"})
	store.AddWallet(from)
	pl := newPrivateLedger()

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		_, err := pl.DebitAcrossChains(ctx, repos, from, d("2.5"))
		return err
	})
	assert.True(t, apperrors.IsInvariant(err))

	entries, err := store.Repositories().PrivateLedger.ListByWalletID(ctx, from.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordDelta_NetworkNotConfigured(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pl := newPrivateLedger()

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		return pl.RecordDelta(ctx, repos, uuid.New(), 0, "MASH", "SOL", d("1"))
	})
	assert.True(t, apperrors.IsInvariant(err))
}

func TestDebitAcrossChains_LeavesDomain(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	from := ecoWallet(map[string]string{"ETH": "2", "BSC": "4"})
	store.AddWallet(from)
	pl := newPrivateLedger()

	err := store.WithinTx(ctx, func(repos repositories.Repositories) error {
		_, err := pl.DebitAcrossChains(ctx, repos, from, d("5"))
		return err
	})
	require.NoError(t, err)

	got, _ := store.Repositories().Wallets.GetByID(ctx, from.ID)
	assert.True(t, got.Addresses["BSC"].Balance.IsZero())
	assert.True(t, got.Addresses["ETH"].Balance.Equal(d("1")))
}
