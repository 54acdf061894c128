package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WalletType is the custody class of a wallet
type WalletType string

const (
	WalletTypeFiat    WalletType = "FIAT"
	WalletTypeSpot    WalletType = "SPOT"
	WalletTypeEco     WalletType = "ECO"
	WalletTypeFutures WalletType = "FUTURES"
)

// Validate checks if the wallet type is valid
func (t WalletType) Validate() error {
	switch t {
	case WalletTypeFiat, WalletTypeSpot, WalletTypeEco, WalletTypeFutures:
		return nil
	default:
		return fmt.Errorf("invalid wallet type: %s", t)
	}
}

// ParseWalletType accepts any casing of a wallet type name
func ParseWalletType(s string) (WalletType, error) {
	t := WalletType(strings.ToUpper(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// WalletStatus represents whether a wallet accepts movements
type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "ACTIVE"
	WalletStatusInactive WalletStatus = "INACTIVE"
)

// ChainBalance is the part of an ECO wallet held on one chain
type ChainBalance struct {
	Address *string         `json:"address"`
	Network *string         `json:"network"`
	Balance decimal.Decimal `json:"balance"`
}

// ChainBalances maps chain name to its balance slice
type ChainBalances map[string]ChainBalance

// Total sums the per-chain balances
func (c ChainBalances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, cb := range c {
		total = total.Add(cb.Balance)
	}
	return total
}

// ChainsByBalance returns chain names ordered by descending balance, ties by name
func (c ChainBalances) ChainsByBalance() []string {
	chains := make([]string, 0, len(c))
	for chain := range c {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool {
		bi, bj := c[chains[i]].Balance, c[chains[j]].Balance
		if !bi.Equal(bj) {
			return bi.GreaterThan(bj)
		}
		return chains[i] < chains[j]
	})
	return chains
}

// Clone returns a deep copy
func (c ChainBalances) Clone() ChainBalances {
	if c == nil {
		return nil
	}
	out := make(ChainBalances, len(c))
	for k, v := range c {
		if v.Address != nil {
			addr := *v.Address
			v.Address = &addr
		}
		if v.Network != nil {
			network := *v.Network
			v.Network = &network
		}
		out[k] = v
	}
	return out
}

// Wallet holds a user's balance for one (currency, type) pair
type Wallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Type      WalletType      `json:"type" db:"type"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Addresses ChainBalances   `json:"addresses,omitempty" db:"-"`
	Status    WalletStatus    `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// NewWallet builds an empty active wallet
func NewWallet(userID uuid.UUID, currency string, walletType WalletType) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  NormalizeCurrency(currency),
		Type:      walletType,
		Balance:   decimal.Zero,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the wallet can be debited or credited
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// Clone returns a deep copy
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	c.Addresses = w.Addresses.Clone()
	return &c
}

// WalletKey identifies a wallet by owner, currency and type
type WalletKey struct {
	UserID   uuid.UUID
	Currency string
	Type     WalletType
}

func (k WalletKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.Type, k.Currency)
}

// NormalizeCurrency trims and upper-cases a currency code.
// A Caser is stateful, so one is built per call.
func NormalizeCurrency(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}
