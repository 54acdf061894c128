// Package ledger holds the balance-mutating primitives shared by the transfer
// and withdrawal engines. Every function here expects to run inside the
// caller's atomic transaction.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
)

// ApplyDelta returns max(0, round(balance+delta, precision)). The clamp is a
// last guard; callers check sufficiency before debiting.
func ApplyDelta(balance, delta decimal.Decimal, precision entities.Precision) decimal.Decimal {
	next := precision.Round(balance.Add(delta))
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// Debit removes amount from wallet, refusing to overdraw it
func Debit(ctx context.Context, wallets repositories.WalletRepository, wallet *entities.Wallet, amount decimal.Decimal, precision entities.Precision) error {
	if !amount.IsPositive() {
		return apperrors.ValidationError("amount", "debit amount must be positive")
	}
	if !wallet.IsActive() {
		return apperrors.ValidationError("wallet", "wallet is inactive")
	}
	if wallet.Balance.LessThan(amount) {
		return apperrors.InsufficientFundsError(wallet.Balance.String(), amount.String())
	}
	next := ApplyDelta(wallet.Balance, amount.Neg(), precision)
	if err := wallets.UpdateBalance(ctx, wallet.ID, next); err != nil {
		return fmt.Errorf("debit wallet %s: %w", wallet.ID, err)
	}
	wallet.Balance = next
	return nil
}

// Credit adds amount to wallet
func Credit(ctx context.Context, wallets repositories.WalletRepository, wallet *entities.Wallet, amount decimal.Decimal, precision entities.Precision) error {
	if amount.IsNegative() {
		return apperrors.ValidationError("amount", "credit amount cannot be negative")
	}
	if !wallet.IsActive() {
		return apperrors.ValidationError("wallet", "wallet is inactive")
	}
	next := ApplyDelta(wallet.Balance, amount, precision)
	if err := wallets.UpdateBalance(ctx, wallet.ID, next); err != nil {
		return fmt.Errorf("credit wallet %s: %w", wallet.ID, err)
	}
	wallet.Balance = next
	return nil
}

// LockWallets takes row locks on the given wallets in id order so concurrent
// operations on the same pair cannot deadlock. The returned map is keyed by id.
func LockWallets(ctx context.Context, wallets repositories.WalletRepository, ids ...uuid.UUID) (map[uuid.UUID]*entities.Wallet, error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*entities.Wallet, len(ordered))
	for _, id := range ordered {
		w, err := wallets.GetForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock wallet %s: %w", id, err)
		}
		locked[id] = w
	}
	return locked, nil
}

// GetOrCreateWallet returns the wallet for key, creating an empty active one
// when it does not exist yet.
func GetOrCreateWallet(ctx context.Context, wallets repositories.WalletRepository, key entities.WalletKey) (*entities.Wallet, error) {
	w, err := wallets.GetByKey(ctx, key)
	if err == nil {
		return w, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	w = entities.NewWallet(key.UserID, key.Currency, key.Type)
	if err := wallets.Create(ctx, w); err != nil {
		// Lost a creation race; the other writer's row is the one to use.
		if apperrors.IsConflict(err) {
			return wallets.GetByKey(ctx, key)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}
