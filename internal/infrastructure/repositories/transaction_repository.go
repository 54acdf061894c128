package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
)

const transactionColumns = `id, user_id, wallet_id, type, amount, fee, status, metadata,
	reference_id, description, created_at, updated_at`

type transactionRow struct {
	entities.Transaction
	MetadataJSON []byte `db:"metadata"`
}

func (r transactionRow) toEntity() (*entities.Transaction, error) {
	tx := r.Transaction
	if len(r.MetadataJSON) > 0 && string(r.MetadataJSON) != "null" {
		if err := json.Unmarshal(r.MetadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return &tx, nil
}

// TransactionRepository persists transactions using PostgreSQL
type TransactionRepository struct {
	db     sqlx.ExtContext
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db sqlx.ExtContext, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

// Create inserts a validated transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return apperrors.ValidationError("transaction", err.Error())
	}
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.WalletID,
		string(tx.Type),
		tx.Amount,
		tx.Fee,
		string(tx.Status),
		metadata,
		tx.ReferenceID,
		tx.Description,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))
		return mapError(err, "TRANSACTION")
	}
	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

// GetForUpdate reads the transaction and locks its row
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entities.Transaction, error) {
	var row transactionRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, args...); err != nil {
		return nil, mapError(err, "TRANSACTION")
	}
	return row.toEntity()
}

// Update writes status, fee, metadata, reference and description back
func (r *TransactionRepository) Update(ctx context.Context, tx *entities.Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}
	tx.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, fee = $3, metadata = $4, reference_id = $5, description = $6, updated_at = $7
		WHERE id = $1`,
		tx.ID, string(tx.Status), tx.Fee, metadata, tx.ReferenceID, tx.Description, tx.UpdatedAt)
	if err != nil {
		return mapError(err, "TRANSACTION")
	}
	return expectOne(res, "TRANSACTION")
}

// ListByStatus returns the oldest transactions of txType in one of statuses
func (r *TransactionRepository) ListByStatus(ctx context.Context, txType entities.TransactionType, statuses []entities.TransactionStatus, limit int) ([]*entities.Transaction, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	if limit <= 0 {
		limit = 100
	}

	var rows []transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE type = $1 AND status = ANY($2)
		ORDER BY created_at
		LIMIT $3`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, string(txType), pq.Array(names), limit); err != nil {
		return nil, fmt.Errorf("list transactions by status: %w", err)
	}

	out := make([]*entities.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
