package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// WalletRepository defines the interface for wallet persistence.
// GetForUpdate locks the row until the surrounding transaction ends.
type WalletRepository interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	GetByKey(ctx context.Context, key entities.WalletKey) (*entities.Wallet, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	UpdateAddresses(ctx context.Context, id uuid.UUID, addresses entities.ChainBalances) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	Update(ctx context.Context, tx *entities.Transaction) error
	ListByStatus(ctx context.Context, txType entities.TransactionType, statuses []entities.TransactionStatus, limit int) ([]*entities.Transaction, error)
}

// AdminProfitRepository defines the interface for platform fee records
type AdminProfitRepository interface {
	Create(ctx context.Context, profit *entities.AdminProfit) error
	GetByTransactionID(ctx context.Context, txID uuid.UUID) (*entities.AdminProfit, error)
	DeleteByTransactionID(ctx context.Context, txID uuid.UUID) error
}

// PrivateLedgerRepository defines the interface for per-chain ledger entries
type PrivateLedgerRepository interface {
	// AddDifference upserts the entry for key, adding amount to its offchain difference.
	AddDifference(ctx context.Context, key entities.PrivateLedgerKey, amount decimal.Decimal) (*entities.PrivateLedgerEntry, error)
	ListByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PrivateLedgerEntry, error)
}

// UserRepository is a read-only view over platform users
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

// CurrencyRepository is the currency catalog
type CurrencyRepository interface {
	GetCurrency(ctx context.Context, code string, walletType entities.WalletType) (*entities.Currency, error)
}

// SettingsRepository reads the flat key/value settings table
type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// Repositories groups the repositories that take part in one unit of work
type Repositories struct {
	Wallets       WalletRepository
	Transactions  TransactionRepository
	AdminProfits  AdminProfitRepository
	PrivateLedger PrivateLedgerRepository
	Users         UserRepository
}

// Store runs a function inside a single atomic transaction. If fn returns an
// error every change made through repos is rolled back.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
