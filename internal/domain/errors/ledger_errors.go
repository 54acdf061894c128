package errors

import (
	"errors"
	"regexp"
	"strings"
)

// Ledger-specific errors
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrInvalidRate         = errors.New("invalid exchange rate")
	ErrExternalProvider    = errors.New("external provider error")
	ErrInvariant           = errors.New("internal invariant violated")
	ErrInvalidStatusChange = errors.New("invalid transaction status transition")
)

// WithdrawalFailedMessage is the only provider failure text shown to users
const WithdrawalFailedMessage = "withdrawal failed, please contact support"

// InsufficientFundsError creates an insufficient funds error
func InsufficientFundsError(available, required string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient funds for this operation",
		Details: map[string]interface{}{
			"available": available,
			"required":  required,
		},
	}
}

// PriceUnavailableError is returned when no USD price can be resolved
func PriceUnavailableError(currency, walletType string) *DomainError {
	return &DomainError{
		Err:     ErrPriceUnavailable,
		Code:    "PRICE_UNAVAILABLE",
		Message: "price unavailable for " + currency,
		Details: map[string]interface{}{
			"currency":    currency,
			"wallet_type": walletType,
		},
	}
}

// InvalidRateError is returned when a conversion would divide by a non-positive price
func InvalidRateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidRate,
		Code:    "INVALID_RATE",
		Message: "cannot derive exchange rate",
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

// ExternalProviderError wraps a provider failure. The raw error is sanitized
// and kept in Details; the message is the generic user-facing text.
func ExternalProviderError(provider string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrExternalProvider,
		Code:    "WITHDRAWAL_FAILED",
		Message: WithdrawalFailedMessage,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
	if err != nil {
		de.Details["cause"] = Sanitize(err.Error())
	}
	return de
}

// InsufficientChainBalanceError signals that per-chain balances cannot cover a transfer
func InsufficientChainBalanceError(walletID, remaining string) *DomainError {
	return &DomainError{
		Err:     ErrInvariant,
		Code:    "INSUFFICIENT_CHAIN_BALANCE",
		Message: "chain balances cannot cover the requested amount",
		Details: map[string]interface{}{
			"wallet_id": walletID,
			"remaining": remaining,
		},
	}
}

// NetworkNotConfiguredError signals a chain with no configured network
func NetworkNotConfiguredError(chain string) *DomainError {
	return &DomainError{
		Err:     ErrInvariant,
		Code:    "NETWORK_NOT_CONFIGURED",
		Message: "network not configured for chain " + chain,
		Details: map[string]interface{}{
			"chain": chain,
		},
	}
}

// InvalidStatusTransitionError rejects an illegal transaction status change
func InvalidStatusTransitionError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidStatusChange,
		Code:    "INVALID_STATUS_TRANSITION",
		Message: "transaction cannot move from " + from + " to " + to,
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsPriceUnavailable(err error) bool {
	return errors.Is(err, ErrPriceUnavailable)
}

func IsExternalProvider(err error) bool {
	return errors.Is(err, ErrExternalProvider)
}

func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s"']+`)
	secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|signature|token|passphrase)["'=:\s]+[^\s"',&]+`)
)

const maxSanitizedLength = 200

// Sanitize strips URLs and credentials from provider error text and
// truncates long payloads before it is logged or stored.
func Sanitize(msg string) string {
	msg = urlPattern.ReplaceAllString(msg, "[url]")
	msg = secretPattern.ReplaceAllString(msg, "$1=[redacted]")
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxSanitizedLength {
		msg = msg[:maxSanitizedLength] + "..."
	}
	return msg
}
