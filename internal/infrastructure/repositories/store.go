package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	domainrepos "github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/infrastructure/database"
)

const uniqueViolation = "23505"

// Store is the Postgres unit of work. Repositories returned outside WithinTx
// run each statement on its own connection.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a Postgres backed store
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Repositories returns repositories bound to the connection pool
func (s *Store) Repositories() domainrepos.Repositories {
	return newRepositories(s.db, s.logger)
}

// WithinTx runs fn inside one database transaction
func (s *Store) WithinTx(ctx context.Context, fn func(repos domainrepos.Repositories) error) error {
	return database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(newRepositories(tx, s.logger))
	})
}

func newRepositories(q sqlx.ExtContext, logger *zap.Logger) domainrepos.Repositories {
	return domainrepos.Repositories{
		Wallets:       NewWalletRepository(q, logger),
		Transactions:  NewTransactionRepository(q, logger),
		AdminProfits:  NewAdminProfitRepository(q),
		PrivateLedger: NewPrivateLedgerRepository(q),
		Users:         NewUserRepository(q),
	}
}

// mapError turns driver errors into domain errors
func mapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFoundError(resource)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.ConflictError(resource, "already exists")
	}
	return fmt.Errorf("%s: %w", resource, err)
}

// expectOne reports NotFound when an UPDATE or DELETE touched no row
func expectOne(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", resource, err)
	}
	if n == 0 {
		return apperrors.NotFoundError(resource)
	}
	return nil
}
