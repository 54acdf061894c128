package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransferFee(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		pct    string
		want   string
	}{
		{"two percent", "100", "2", "2"},
		{"zero percent", "100", "0", "0"},
		{"fractional", "33.33", "0.5", "0.16665"},
		{"not rounded", "1", "0.333", "0.00333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransferFee(d(tt.amount), d(tt.pct))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestTransferFee_Pure(t *testing.T) {
	a := TransferFee(d("123.456"), d("1.5"))
	b := TransferFee(d("123.456"), d("1.5"))
	assert.True(t, a.Equal(b))
}

func TestWithdrawalFees(t *testing.T) {
	t.Run("network fee deducted from sent amount", func(t *testing.T) {
		got := WithdrawalFees(d("100"), entities.Precision(2),
			PercentageFee{Platform: d("1"), Surcharge: d("0.5")}, d("0.8"), false)

		assert.True(t, got.InternalFee.Equal(d("1.5")))
		assert.True(t, got.ExternalFee.Equal(d("0.8")))
		assert.True(t, got.NetAmount.Equal(d("99.2")))
		assert.True(t, got.TotalDeduction.Equal(d("101.5")))
	})

	t.Run("network fee passed through", func(t *testing.T) {
		got := WithdrawalFees(d("100"), entities.Precision(2),
			PercentageFee{Platform: d("1")}, d("0.8"), true)

		assert.True(t, got.ExternalFee.IsZero())
		assert.True(t, got.NetAmount.Equal(d("100")))
		assert.True(t, got.TotalDeduction.Equal(d("101")))
	})

	t.Run("internal fee rounded to precision", func(t *testing.T) {
		got := WithdrawalFees(d("10.123"), entities.Precision(2),
			PercentageFee{Platform: d("1")}, decimal.Zero, true)

		assert.True(t, got.InternalFee.Equal(d("0.1")), "got %s", got.InternalFee)
	})
}
