package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places a currency amount carries
type Precision int32

const (
	DefaultPrecision Precision = 8
	MaxPrecision     Precision = 18
)

// NewPrecision normalises out-of-range values to DefaultPrecision
func NewPrecision(p int) Precision {
	if p < 0 || p > int(MaxPrecision) {
		return DefaultPrecision
	}
	return Precision(p)
}

// PrecisionOrDefault resolves an optional configured precision
func PrecisionOrDefault(p *int) Precision {
	if p == nil {
		return DefaultPrecision
	}
	return NewPrecision(*p)
}

// Places returns the precision in the form decimal.Round expects
func (p Precision) Places() int32 {
	if p < 0 || p > MaxPrecision {
		return int32(DefaultPrecision)
	}
	return int32(p)
}

// Round rounds d half away from zero to p places
func (p Precision) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(p.Places())
}

// Fits reports whether d has no more decimal places than p
func (p Precision) Fits(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(p.Places()))
}

// NetworkConfig is the per-chain withdrawal configuration of a currency
type NetworkConfig struct {
	Fee           decimal.Decimal  `json:"fee"`
	MinWithdraw   *decimal.Decimal `json:"min_withdraw,omitempty"`
	MaxWithdraw   *decimal.Decimal `json:"max_withdraw,omitempty"`
	Precision     *int             `json:"precision,omitempty"`
	PercentageFee *decimal.Decimal `json:"percentage_fee,omitempty"`
	Active        bool             `json:"active"`
	Deposit       bool             `json:"deposit"`
	Withdraw      bool             `json:"withdraw"`
}

// Currency is a catalog entry for one (code, wallet type)
type Currency struct {
	Code          string                   `json:"code" db:"code"`
	WalletType    WalletType               `json:"wallet_type" db:"wallet_type"`
	Name          string                   `json:"name" db:"name"`
	Precision     *int                     `json:"precision,omitempty" db:"precision"`
	Price         *decimal.Decimal         `json:"price,omitempty" db:"price"`
	FeePercentage decimal.Decimal          `json:"fee_percentage" db:"fee_percentage"`
	MinWithdraw   *decimal.Decimal         `json:"min_withdraw,omitempty" db:"min_withdraw"`
	MaxWithdraw   *decimal.Decimal         `json:"max_withdraw,omitempty" db:"max_withdraw"`
	Active        bool                     `json:"active" db:"active"`
	Networks      map[string]NetworkConfig `json:"networks,omitempty" db:"-"`
	UpdatedAt     time.Time                `json:"updated_at" db:"updated_at"`
}

// DecimalPrecision returns the currency's precision or the default
func (c *Currency) DecimalPrecision() Precision {
	return PrecisionOrDefault(c.Precision)
}

// Network returns the configuration for chain, if any
func (c *Currency) Network(chain string) (NetworkConfig, bool) {
	n, ok := c.Networks[chain]
	return n, ok
}

// NetworkPrecision prefers the network precision and falls back to the currency's
func (c *Currency) NetworkPrecision(n NetworkConfig) Precision {
	if n.Precision != nil {
		return NewPrecision(*n.Precision)
	}
	return c.DecimalPrecision()
}

// WithdrawLimits returns the [min, max] bounds for a network, falling back to
// the currency-level limits. A nil bound is unbounded.
func (c *Currency) WithdrawLimits(n NetworkConfig) (min, max *decimal.Decimal) {
	min, max = n.MinWithdraw, n.MaxWithdraw
	if min == nil {
		min = c.MinWithdraw
	}
	if max == nil {
		max = c.MaxWithdraw
	}
	return min, max
}

// PlatformPercentage prefers the network percentage fee over the currency's
func (c *Currency) PlatformPercentage(n NetworkConfig) decimal.Decimal {
	if n.PercentageFee != nil {
		return *n.PercentageFee
	}
	return c.FeePercentage
}
