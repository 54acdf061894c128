package entities

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType distinguishes moves between a user's own wallets from sends to another user
type TransferType string

const (
	TransferTypeWallet TransferType = "wallet"
	TransferTypeClient TransferType = "client"
)

// Settings keys read from the settings table
const (
	SettingWalletTransferFeePercentage = "walletTransferFeePercentage"
	SettingWithdrawApproval            = "withdrawApproval"
	SettingWithdrawChainFee            = "withdrawChainFee"
	SettingSpotWithdrawFee             = "spotWithdrawFee"
)

// FinanceSettings is an immutable snapshot of the finance settings,
// passed into the engines on every call.
type FinanceSettings struct {
	WalletTransferFeePercentage decimal.Decimal `json:"wallet_transfer_fee_percentage"`
	WithdrawApproval            bool            `json:"withdraw_approval"`
	WithdrawChainFee            bool            `json:"withdraw_chain_fee"`
	SpotWithdrawFee             decimal.Decimal `json:"spot_withdraw_fee"`
}

// ParseFinanceSettings resolves the raw key/value settings. Unknown or
// malformed values fall back to the zero value.
func ParseFinanceSettings(raw map[string]string) FinanceSettings {
	return FinanceSettings{
		WalletTransferFeePercentage: parseDecimalSetting(raw[SettingWalletTransferFeePercentage]),
		WithdrawApproval:            parseBoolSetting(raw[SettingWithdrawApproval]),
		WithdrawChainFee:            parseBoolSetting(raw[SettingWithdrawChainFee]),
		SpotWithdrawFee:             parseDecimalSetting(raw[SettingSpotWithdrawFee]),
	}
}

// Equal reports whether two snapshots hold the same values
func (s FinanceSettings) Equal(o FinanceSettings) bool {
	return s.WalletTransferFeePercentage.Equal(o.WalletTransferFeePercentage) &&
		s.WithdrawApproval == o.WithdrawApproval &&
		s.WithdrawChainFee == o.WithdrawChainFee &&
		s.SpotWithdrawFee.Equal(o.SpotWithdrawFee)
}

func parseDecimalSetting(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func parseBoolSetting(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// Setting is one row of the settings table
type Setting struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}

// TransferRequest moves value between two wallets
type TransferRequest struct {
	UserID       uuid.UUID       `json:"-"`
	FromType     WalletType      `json:"from_type" validate:"required,oneof=FIAT SPOT ECO FUTURES"`
	FromCurrency string          `json:"from_currency" validate:"required"`
	ToType       WalletType      `json:"to_type" validate:"required,oneof=FIAT SPOT ECO FUTURES"`
	ToCurrency   string          `json:"to_currency" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	TransferType TransferType    `json:"transfer_type" validate:"required,oneof=wallet client"`
	ClientID     *uuid.UUID      `json:"client_id,omitempty" validate:"required_if=TransferType client"`
}

// TransferResult holds both legs of a transfer
type TransferResult struct {
	FromTransaction *Transaction `json:"from_transaction"`
	ToTransaction   *Transaction `json:"to_transaction"`
}

// WithdrawalRequest sends funds from a wallet to an external address
type WithdrawalRequest struct {
	UserID     uuid.UUID       `json:"-"`
	WalletType WalletType      `json:"wallet_type" validate:"required,oneof=FIAT SPOT"`
	Currency   string          `json:"currency" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Chain      string          `json:"chain" validate:"required"`
	ToAddress  string          `json:"to_address" validate:"required"`
	Memo       string          `json:"memo,omitempty"`
}

// WithdrawalResult is the reserved (and possibly submitted) withdrawal
type WithdrawalResult struct {
	Transaction *Transaction `json:"transaction"`
	ProviderRef *string      `json:"provider_ref,omitempty"`
}

// DepositAddress is where a user can send funds for a currency/chain
type DepositAddress struct {
	Currency string  `json:"currency"`
	Chain    string  `json:"chain"`
	Network  string  `json:"network"`
	Address  string  `json:"address"`
	Tag      *string `json:"tag,omitempty"`
}
