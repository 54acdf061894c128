package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
)

const walletColumns = `id, user_id, currency, type, balance, addresses, status, created_at, updated_at`

// walletRow is the wallets table shape; addresses is JSONB
type walletRow struct {
	entities.Wallet
	AddressesJSON []byte `db:"addresses"`
}

func (r walletRow) toEntity() (*entities.Wallet, error) {
	w := r.Wallet
	if len(r.AddressesJSON) > 0 && string(r.AddressesJSON) != "null" {
		if err := json.Unmarshal(r.AddressesJSON, &w.Addresses); err != nil {
			return nil, fmt.Errorf("decode wallet addresses: %w", err)
		}
	}
	return &w, nil
}

func marshalAddresses(addresses entities.ChainBalances) ([]byte, error) {
	if addresses == nil {
		return nil, nil
	}
	return json.Marshal(addresses)
}

// WalletRepository implements the wallet repository interface using PostgreSQL
type WalletRepository struct {
	db     sqlx.ExtContext
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db sqlx.ExtContext, logger *zap.Logger) *WalletRepository {
	return &WalletRepository{db: db, logger: logger}
}

// Create inserts a wallet; a second wallet for the same key is a conflict.
// The key clash is reported without raising a unique violation so the
// surrounding transaction stays usable.
func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	addresses, err := marshalAddresses(wallet.Addresses)
	if err != nil {
		return fmt.Errorf("encode wallet addresses: %w", err)
	}

	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, currency, type) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		wallet.ID,
		wallet.UserID,
		wallet.Currency,
		string(wallet.Type),
		wallet.Balance,
		addresses,
		string(wallet.Status),
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "WALLET")
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("wallet rows affected: %w", err)
	}
	if inserted == 0 {
		return apperrors.ConflictError("WALLET", "already exists")
	}

	r.logger.Debug("Wallet created",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("currency", wallet.Currency),
		zap.String("type", string(wallet.Type)))
	return nil
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

// GetByKey retrieves the wallet of a user for one currency and type
func (r *WalletRepository) GetByKey(ctx context.Context, key entities.WalletKey) (*entities.Wallet, error) {
	return r.getOne(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2 AND type = $3`,
		key.UserID, key.Currency, string(key.Type))
}

// GetForUpdate reads the wallet and locks its row until the transaction ends
func (r *WalletRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return r.getOne(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

func (r *WalletRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entities.Wallet, error) {
	var row walletRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, args...); err != nil {
		return nil, mapError(err, "WALLET")
	}
	return row.toEntity()
}

// ListByUserID returns the user's wallets ordered by type and currency
func (r *WalletRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error) {
	var rows []walletRow
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY type, currency`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	wallets := make([]*entities.Wallet, 0, len(rows))
	for _, row := range rows {
		w, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// UpdateBalance overwrites the balance
func (r *WalletRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`,
		id, balance, time.Now().UTC())
	if err != nil {
		return mapError(err, "WALLET")
	}
	return expectOne(res, "WALLET")
}

// UpdateAddresses overwrites the per-chain address map of an ECO wallet
func (r *WalletRepository) UpdateAddresses(ctx context.Context, id uuid.UUID, addresses entities.ChainBalances) error {
	data, err := marshalAddresses(addresses)
	if err != nil {
		return fmt.Errorf("encode wallet addresses: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET addresses = $2, updated_at = $3 WHERE id = $1`,
		id, data, time.Now().UTC())
	if err != nil {
		return mapError(err, "WALLET")
	}
	return expectOne(res, "WALLET")
}

// Deactivate marks the wallet INACTIVE; rows are never deleted
func (r *WalletRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(entities.WalletStatusInactive), time.Now().UTC())
	if err != nil {
		return mapError(err, "WALLET")
	}
	return expectOne(res, "WALLET")
}
