// Package memory is an in-process implementation of the ledger repositories.
// Transactions are serialized and copy-on-write: fn works on a private copy
// of the data which replaces the committed copy only when fn succeeds.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
)

// ErrInjectedCommit is returned by commits failed through FailCommits
var ErrInjectedCommit = errors.New("injected commit failure")

type state struct {
	wallets      map[uuid.UUID]*entities.Wallet
	transactions map[uuid.UUID]*entities.Transaction
	profits      map[uuid.UUID]*entities.AdminProfit
	ledger       map[entities.PrivateLedgerKey]*entities.PrivateLedgerEntry
	users        map[uuid.UUID]*entities.User
}

func newState() *state {
	return &state{
		wallets:      make(map[uuid.UUID]*entities.Wallet),
		transactions: make(map[uuid.UUID]*entities.Transaction),
		profits:      make(map[uuid.UUID]*entities.AdminProfit),
		ledger:       make(map[entities.PrivateLedgerKey]*entities.PrivateLedgerEntry),
		users:        make(map[uuid.UUID]*entities.User),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, w := range s.wallets {
		c.wallets[id] = w.Clone()
	}
	for id, t := range s.transactions {
		c.transactions[id] = t.Clone()
	}
	for id, p := range s.profits {
		cp := *p
		c.profits[id] = &cp
	}
	for k, e := range s.ledger {
		ce := *e
		c.ledger[k] = &ce
	}
	for id, u := range s.users {
		cu := *u
		c.users[id] = &cu
	}
	return c
}

// Store implements repositories.Store in memory
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	failCommits int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repositories.Store = (*Store)(nil)

// Repositories returns repositories that read and write committed state directly
func (s *Store) Repositories() repositories.Repositories {
	return newRepositories(&view{store: s})
}

// WithinTx runs fn on a private copy and commits it if fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn func(repos repositories.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	work := s.st.clone()
	s.mu.Unlock()

	if err := fn(newRepositories(&view{st: work})); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCommits > 0 {
		s.failCommits--
		return ErrInjectedCommit
	}
	s.st = work
	return nil
}

// FailCommits makes the next n transaction commits fail
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

// AddUser seeds a user
func (s *Store) AddUser(u *entities.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cu := *u
	s.st.users[u.ID] = &cu
}

// AddWallet seeds a wallet
func (s *Store) AddWallet(w *entities.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.wallets[w.ID] = w.Clone()
}

// AdminProfits returns every recorded profit ordered by creation time
func (s *Store) AdminProfits() []*entities.AdminProfit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.AdminProfit, 0, len(s.st.profits))
	for _, p := range s.st.profits {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Transactions returns every transaction ordered by creation time
func (s *Store) Transactions() []*entities.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.Transaction, 0, len(s.st.transactions))
	for _, t := range s.st.transactions {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// view is either a transaction's private state or the committed state
type view struct {
	store *Store
	st    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func newRepositories(v *view) repositories.Repositories {
	return repositories.Repositories{
		Wallets:       &walletRepository{v: v},
		Transactions:  &transactionRepository{v: v},
		AdminProfits:  &adminProfitRepository{v: v},
		PrivateLedger: &privateLedgerRepository{v: v},
		Users:         &userRepository{v: v},
	}
}

type walletRepository struct{ v *view }

func (r *walletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	return r.v.do(func(st *state) error {
		for _, w := range st.wallets {
			if w.UserID == wallet.UserID && w.Currency == wallet.Currency && w.Type == wallet.Type {
				return apperrors.ConflictError("WALLET", "wallet already exists")
			}
		}
		st.wallets[wallet.ID] = wallet.Clone()
		return nil
	})
}

func (r *walletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	var out *entities.Wallet
	err := r.v.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return apperrors.NotFoundError("WALLET")
		}
		out = w.Clone()
		return nil
	})
	return out, err
}

func (r *walletRepository) GetByKey(ctx context.Context, key entities.WalletKey) (*entities.Wallet, error) {
	var out *entities.Wallet
	err := r.v.do(func(st *state) error {
		for _, w := range st.wallets {
			if w.UserID == key.UserID && w.Currency == key.Currency && w.Type == key.Type {
				out = w.Clone()
				return nil
			}
		}
		return apperrors.NotFoundError("WALLET")
	})
	return out, err
}

// GetForUpdate needs no row lock; transactions are already serialized
func (r *walletRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *walletRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error) {
	var out []*entities.Wallet
	err := r.v.do(func(st *state) error {
		for _, w := range st.wallets {
			if w.UserID == userID {
				out = append(out, w.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Currency < out[j].Currency
	})
	return out, err
}

func (r *walletRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return apperrors.NotFoundError("WALLET")
		}
		w.Balance = balance
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *walletRepository) UpdateAddresses(ctx context.Context, id uuid.UUID, addresses entities.ChainBalances) error {
	return r.v.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return apperrors.NotFoundError("WALLET")
		}
		w.Addresses = addresses.Clone()
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *walletRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return apperrors.NotFoundError("WALLET")
		}
		w.Status = entities.WalletStatusInactive
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
}

type transactionRepository struct{ v *view }

func (r *transactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return apperrors.ValidationError("transaction", err.Error())
	}
	return r.v.do(func(st *state) error {
		if _, exists := st.transactions[tx.ID]; exists {
			return apperrors.ConflictError("TRANSACTION", "transaction already exists")
		}
		st.transactions[tx.ID] = tx.Clone()
		return nil
	})
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	var out *entities.Transaction
	err := r.v.do(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return apperrors.NotFoundError("TRANSACTION")
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionRepository) Update(ctx context.Context, tx *entities.Transaction) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.transactions[tx.ID]; !ok {
			return apperrors.NotFoundError("TRANSACTION")
		}
		c := tx.Clone()
		c.UpdatedAt = time.Now().UTC()
		st.transactions[tx.ID] = c
		return nil
	})
}

func (r *transactionRepository) ListByStatus(ctx context.Context, txType entities.TransactionType, statuses []entities.TransactionStatus, limit int) ([]*entities.Transaction, error) {
	wanted := make(map[entities.TransactionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []*entities.Transaction
	err := r.v.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.Type == txType && wanted[t.Status] {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type adminProfitRepository struct{ v *view }

func (r *adminProfitRepository) Create(ctx context.Context, profit *entities.AdminProfit) error {
	return r.v.do(func(st *state) error {
		cp := *profit
		st.profits[profit.ID] = &cp
		return nil
	})
}

func (r *adminProfitRepository) GetByTransactionID(ctx context.Context, txID uuid.UUID) (*entities.AdminProfit, error) {
	var out *entities.AdminProfit
	err := r.v.do(func(st *state) error {
		for _, p := range st.profits {
			if p.TransactionID == txID {
				cp := *p
				out = &cp
				return nil
			}
		}
		return apperrors.NotFoundError("ADMIN_PROFIT")
	})
	return out, err
}

func (r *adminProfitRepository) DeleteByTransactionID(ctx context.Context, txID uuid.UUID) error {
	return r.v.do(func(st *state) error {
		for id, p := range st.profits {
			if p.TransactionID == txID {
				delete(st.profits, id)
			}
		}
		return nil
	})
}

type privateLedgerRepository struct{ v *view }

func (r *privateLedgerRepository) AddDifference(ctx context.Context, key entities.PrivateLedgerKey, amount decimal.Decimal) (*entities.PrivateLedgerEntry, error) {
	var out *entities.PrivateLedgerEntry
	err := r.v.do(func(st *state) error {
		now := time.Now().UTC()
		e, ok := st.ledger[key]
		if !ok {
			e = &entities.PrivateLedgerEntry{
				ID:                 uuid.New(),
				WalletID:           key.WalletID,
				Index:              key.Index,
				Currency:           key.Currency,
				Chain:              key.Chain,
				Network:            key.Network,
				OffchainDifference: decimal.Zero,
				CreatedAt:          now,
			}
			st.ledger[key] = e
		}
		e.OffchainDifference = e.OffchainDifference.Add(amount)
		e.UpdatedAt = now
		ce := *e
		out = &ce
		return nil
	})
	return out, err
}

func (r *privateLedgerRepository) ListByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PrivateLedgerEntry, error) {
	var out []*entities.PrivateLedgerEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.ledger {
			if e.WalletID == walletID {
				ce := *e
				out = append(out, &ce)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Index < out[j].Index
	})
	return out, err
}

type userRepository struct{ v *view }

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var out *entities.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperrors.NotFoundError("USER")
		}
		cu := *u
		out = &cu
		return nil
	})
	return out, err
}
