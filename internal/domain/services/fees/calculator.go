// Package fees computes transfer and withdrawal fees. All functions are pure.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// TransferFee returns amount * pct / 100 without rounding; callers round to
// the source currency precision.
func TransferFee(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(pct).Div(hundred)
}

// PercentageFee is the combined percentage charged by the platform on a withdrawal
type PercentageFee struct {
	Platform  decimal.Decimal
	Surcharge decimal.Decimal
}

// Total returns the combined percentage
func (p PercentageFee) Total() decimal.Decimal {
	return p.Platform.Add(p.Surcharge)
}

// WithdrawalBreakdown splits a withdrawal into what the platform keeps and
// what the chain is paid.
type WithdrawalBreakdown struct {
	// InternalFee is retained by the platform and charged on top of the amount.
	InternalFee decimal.Decimal
	// ExternalFee is the network fee taken out of the amount sent on-chain.
	ExternalFee decimal.Decimal
	// NetAmount is what is requested from the provider.
	NetAmount decimal.Decimal
	// TotalDeduction is what leaves the user's balance.
	TotalDeduction decimal.Decimal
}

// WithdrawalFees computes the fee split for a withdrawal. The fixed network fee
// is deducted from the sent amount only when passNetworkFee is false.
func WithdrawalFees(amount decimal.Decimal, precision entities.Precision, pct PercentageFee, fixedNetworkFee decimal.Decimal, passNetworkFee bool) WithdrawalBreakdown {
	internal := precision.Round(amount.Mul(pct.Total()).Div(hundred))
	external := decimal.Zero
	if !passNetworkFee {
		external = fixedNetworkFee
	}
	return WithdrawalBreakdown{
		InternalFee:    internal,
		ExternalFee:    external,
		NetAmount:      amount.Sub(external),
		TotalDeduction: amount.Add(internal),
	}
}
