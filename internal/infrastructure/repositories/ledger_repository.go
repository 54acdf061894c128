package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// AdminProfitRepository persists platform fee records
type AdminProfitRepository struct {
	db sqlx.ExtContext
}

// NewAdminProfitRepository creates a new admin profit repository
func NewAdminProfitRepository(db sqlx.ExtContext) *AdminProfitRepository {
	return &AdminProfitRepository{db: db}
}

// Create inserts a fee record
func (r *AdminProfitRepository) Create(ctx context.Context, profit *entities.AdminProfit) error {
	if profit.CreatedAt.IsZero() {
		profit.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_profits (id, amount, currency, type, transaction_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profit.ID,
		profit.Amount,
		profit.Currency,
		string(profit.Type),
		profit.TransactionID,
		profit.Description,
		profit.CreatedAt,
	)
	return mapError(err, "ADMIN_PROFIT")
}

// GetByTransactionID returns the fee record of a transaction
func (r *AdminProfitRepository) GetByTransactionID(ctx context.Context, txID uuid.UUID) (*entities.AdminProfit, error) {
	var profit entities.AdminProfit
	err := sqlx.GetContext(ctx, r.db, &profit, `
		SELECT id, amount, currency, type, transaction_id, description, created_at
		FROM admin_profits
		WHERE transaction_id = $1`, txID)
	if err != nil {
		return nil, mapError(err, "ADMIN_PROFIT")
	}
	return &profit, nil
}

// DeleteByTransactionID removes the fee record of a refunded transaction.
// Deleting a missing record is not an error.
func (r *AdminProfitRepository) DeleteByTransactionID(ctx context.Context, txID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_profits WHERE transaction_id = $1`, txID)
	return mapError(err, "ADMIN_PROFIT")
}

// PrivateLedgerRepository persists per-chain offchain differences of ECO wallets
type PrivateLedgerRepository struct {
	db sqlx.ExtContext
}

// NewPrivateLedgerRepository creates a new private ledger repository
func NewPrivateLedgerRepository(db sqlx.ExtContext) *PrivateLedgerRepository {
	return &PrivateLedgerRepository{db: db}
}

// AddDifference upserts the entry for key and adds amount to it atomically
func (r *PrivateLedgerRepository) AddDifference(ctx context.Context, key entities.PrivateLedgerKey, amount decimal.Decimal) (*entities.PrivateLedgerEntry, error) {
	now := time.Now().UTC()
	var entry entities.PrivateLedgerEntry
	err := sqlx.GetContext(ctx, r.db, &entry, `
		INSERT INTO private_ledgers (id, wallet_id, idx, currency, chain, network, offchain_difference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (wallet_id, idx, currency, chain, network)
		DO UPDATE SET offchain_difference = private_ledgers.offchain_difference + EXCLUDED.offchain_difference,
		              updated_at = EXCLUDED.updated_at
		RETURNING id, wallet_id, idx, currency, chain, network, offchain_difference, created_at, updated_at`,
		uuid.New(), key.WalletID, key.Index, key.Currency, key.Chain, key.Network, amount, now)
	if err != nil {
		return nil, fmt.Errorf("upsert private ledger: %w", err)
	}
	return &entry, nil
}

// ListByWalletID returns every entry of a wallet ordered by chain and index
func (r *PrivateLedgerRepository) ListByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PrivateLedgerEntry, error) {
	var entries []*entities.PrivateLedgerEntry
	err := sqlx.SelectContext(ctx, r.db, &entries, `
		SELECT id, wallet_id, idx, currency, chain, network, offchain_difference, created_at, updated_at
		FROM private_ledgers
		WHERE wallet_id = $1
		ORDER BY chain, idx`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list private ledger: %w", err)
	}
	return entries, nil
}
